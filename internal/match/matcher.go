// Package match selects a partner for a searching user by scanning eligible
// candidates and scoring shared interests.
package match

import (
	"context"
	"strings"

	"github.com/noxchat/noxd/internal/directory"
)

// candidateScanLimit bounds one matching pass. Candidates beyond the most
// recent 50 searchers wait for a later pass.
const candidateScanLimit = 50

// Matcher scans the Directory for a partner. Callers must hold the pairing
// lock: FindMatch reads candidate state and writes the pairing in two steps,
// and two concurrent passes could otherwise claim the same candidate.
type Matcher struct {
	dir directory.Directory
}

func New(dir directory.Directory) *Matcher {
	return &Matcher{dir: dir}
}

// FindMatch picks a partner for requesterID and pairs both sides atomically.
// Returns ok=false when the requester is blocked or no candidate exists; the
// requester is then left in search for a future pass.
//
// Only the requester's seeking_gender narrows the candidate set. A
// candidate's own preference is deliberately not checked against the
// requester.
func (m *Matcher) FindMatch(ctx context.Context, requesterID int64) (int64, bool, error) {
	requester, err := m.dir.GetUser(ctx, requesterID)
	if err != nil {
		return 0, false, err
	}
	if requester.Blocked {
		return 0, false, nil
	}
	// the requester may already be paired: a concurrent pass can claim them
	// while this call waited for the pairing lock, or they pressed search
	// mid-dialog. Never overwrite that pairing, and drop the search flag the
	// caller just raised so paired-and-searching cannot coexist.
	if requester.PartnerID != nil {
		if requester.InSearch {
			if err := m.dir.SetInSearch(ctx, requesterID, false); err != nil {
				return 0, false, err
			}
		}
		return *requester.PartnerID, true, nil
	}

	candidates, err := m.dir.Candidates(ctx, requesterID, requester.SeekingGender, candidateScanLimit)
	if err != nil {
		return 0, false, err
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	reqInterests := NormalizeInterests(requester.Interests)

	// strictly-highest score wins; ties go to the candidate seen first
	bestID := candidates[0].ID
	bestScore := -1
	for _, cand := range candidates {
		score := 0
		if len(reqInterests) > 0 {
			score = overlap(reqInterests, NormalizeInterests(cand.Interests))
		}
		if score > bestScore {
			bestScore = score
			bestID = cand.ID
		}
	}

	if err := m.dir.Pair(ctx, requesterID, bestID); err != nil {
		return 0, false, err
	}
	return bestID, true, nil
}

// NormalizeInterests splits a raw comma-separated interest list into a set:
// lowercased, trimmed, empty entries dropped.
func NormalizeInterests(raw string) map[string]struct{} {
	out := map[string]struct{}{}
	if raw == "" {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out[part] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
