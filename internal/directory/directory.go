// Package directory defines the durable per-user record store that every
// other component depends on. Two backends implement it: a relational store
// (gormdir) and a remote JSON blob guarded by an in-process lock (blobdir).
// Both must keep pairing symmetric after every mutation.
package directory

import (
	"context"
	"time"
)

type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// User is the Directory record. ID is externally assigned and immutable.
// PartnerID is symmetric: if A.PartnerID points at B then B.PartnerID points
// back at A, or both are nil.
type User struct {
	ID            int64
	Handle        string
	Phone         string
	RegisteredAt  time.Time
	InSearch      bool
	PartnerID     *int64
	Blocked       bool
	IsAdmin       bool
	Gender        Gender
	SeekingGender Gender
	Age           int
	Interests     string
}

// ProfileUpdate carries partial profile changes. A nil field means
// "leave untouched"; a non-nil field overwrites, even with a zero value.
type ProfileUpdate struct {
	Gender        *Gender
	SeekingGender *Gender
	Age           *int
	Interests     *string
	Phone         *string
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Gender == nil && u.SeekingGender == nil && u.Age == nil &&
		u.Interests == nil && u.Phone == nil
}

type Stats struct {
	TotalUsers    int64
	Searching     int64
	ActiveDialogs int64
}

// DialogPair is an unordered pairing of two users.
type DialogPair struct {
	A int64
	B int64
}

// Directory is the persistence contract of the matching subsystem. Every
// mutation is durable before the call returns. Pair and Unpair mutate both
// sides in one atomic unit; callers serialize them under the engine's
// pairing lock.
type Directory interface {
	// EnsureUser creates the record if absent, otherwise refreshes the
	// handle when it differs. Idempotent.
	EnsureUser(ctx context.Context, id int64, handle string) error

	// GetUser returns apperr.ErrNotFound for unknown ids.
	GetUser(ctx context.Context, id int64) (*User, error)

	SetInSearch(ctx context.Context, id int64, inSearch bool) error
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) error

	// Partner is a snapshot read of the current partner, if any.
	Partner(ctx context.Context, id int64) (int64, bool, error)

	// Candidates lists users eligible for matching against the requester:
	// in search, unpaired, not blocked, excluding the requester, optionally
	// narrowed to one gender. Ordered by registration time descending;
	// the order is the matcher's tie-break order.
	Candidates(ctx context.Context, exclude int64, gender Gender, limit int) ([]User, error)

	// Pair links a and b symmetrically and clears in_search on both.
	// Any prior partner of either side is left as-is (force-pair contract).
	Pair(ctx context.Context, a, b int64) error

	// Unpair clears the pairing for id and its partner. Returns the former
	// partner id, or ok=false when id was not paired (no-op).
	Unpair(ctx context.Context, id int64) (partner int64, ok bool, err error)

	Stats(ctx context.Context) (Stats, error)
	ListSearching(ctx context.Context, limit int) ([]int64, error)
	ListDialogPairs(ctx context.Context, limit int) ([]DialogPair, error)
	ListUsers(ctx context.Context, limit int) ([]User, error)
	ListBlocked(ctx context.Context) ([]User, error)
	ListAdmins(ctx context.Context) ([]int64, error)
	CountRecent(ctx context.Context, window time.Duration) (int64, error)

	Close() error
}
