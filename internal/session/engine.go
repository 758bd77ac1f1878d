// Package session owns the pairing lifecycle: searching, matching, ending
// dialogs, and relaying traffic between paired users.
package session

import (
	"context"
	"sync"

	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/directory"
	"github.com/noxchat/noxd/internal/match"
	"github.com/noxchat/noxd/internal/notify"
)

// State of a user within the session machine.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StatePaired    State = "paired"
)

// StateOf derives the session state from a Directory record.
func StateOf(u *directory.User) State {
	switch {
	case u.PartnerID != nil:
		return StatePaired
	case u.InSearch:
		return StateSearching
	default:
		return StateIdle
	}
}

// Engine drives search/stop/next and relay on top of the Directory.
//
// pairMu is the single serialization point of the matching subsystem: every
// read-modify-write that touches pairing (matching, force-pair, ending a
// dialog) runs under it, across all users. Plain attribute updates and
// relay's partner snapshot read stay outside it.
type Engine struct {
	appCtx   *app.Context
	matcher  *match.Matcher
	notifier notify.Notifier

	pairMu sync.Mutex
}

func NewEngine(appCtx *app.Context, notifier notify.Notifier) *Engine {
	return &Engine{
		appCtx:   appCtx,
		matcher:  match.New(appCtx.Directory),
		notifier: notifier,
	}
}

// Register creates or refreshes the user record on first contact.
func (e *Engine) Register(ctx context.Context, id int64, handle string) error {
	return e.appCtx.Directory.EnsureUser(ctx, id, handle)
}

// Search puts the user into the queue and attempts an immediate match.
// Returns ok=false when no partner was found; the user then stays in search
// until a later pass or an explicit stop.
func (e *Engine) Search(ctx context.Context, id int64) (int64, bool, error) {
	dir := e.appCtx.Directory

	user, err := dir.GetUser(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if user.Blocked {
		return 0, false, apperr.ErrBlocked
	}
	if user.Phone == "" {
		return 0, false, apperr.ErrContactRequired
	}

	if err := dir.SetInSearch(ctx, id, true); err != nil {
		return 0, false, err
	}

	partner, matched, err := e.findMatch(ctx, id)
	if err != nil || !matched {
		return 0, false, err
	}

	// fire-and-forget: a failed notice must not undo the pairing
	_ = e.notifier.Notify(ctx, id, notify.EventPartnerFound)
	if err := e.notifier.Notify(ctx, partner, notify.EventPartnerFound); err != nil {
		e.appCtx.Logger.Warn("partner notification failed", "user", partner, "err", err)
	}
	return partner, true, nil
}

// Stop ends the current dialog, if any, and leaves the user idle. The former
// partner is notified and also becomes idle. Stopping while unpaired is a
// no-op success.
func (e *Engine) Stop(ctx context.Context, id int64) (int64, bool, error) {
	partner, had, err := e.endDialogAndNotify(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if err := e.appCtx.Directory.SetInSearch(ctx, id, false); err != nil {
		return 0, false, err
	}
	return partner, had, nil
}

// Next ends the current dialog and immediately re-enters search.
func (e *Engine) Next(ctx context.Context, id int64) (NextResult, error) {
	var res NextResult

	former, had, err := e.endDialogAndNotify(ctx, id)
	if err != nil {
		return res, err
	}
	res.FormerPartner, res.HadPartner = former, had

	if err := e.appCtx.Directory.SetInSearch(ctx, id, true); err != nil {
		return res, err
	}

	partner, matched, err := e.findMatch(ctx, id)
	if err != nil {
		return res, err
	}
	if matched {
		res.Partner, res.Matched = partner, true
		_ = e.notifier.Notify(ctx, id, notify.EventPartnerFound)
		_ = e.notifier.Notify(ctx, partner, notify.EventPartnerFound)
	}
	return res, nil
}

// NextResult reports both halves of a "next" action: the dialog that ended
// and the one that may have started.
type NextResult struct {
	FormerPartner int64
	HadPartner    bool
	Partner       int64
	Matched       bool
}

// EndDialogFor clears the pairing symmetrically and returns the former
// partner. Idempotent: unpaired users are a no-op.
func (e *Engine) EndDialogFor(ctx context.Context, id int64) (int64, bool, error) {
	e.pairMu.Lock()
	defer e.pairMu.Unlock()
	return e.appCtx.Directory.Unpair(ctx, id)
}

// ForcePair pairs a and b unconditionally, bypassing the matcher. A prior
// partner of either side is left pointing at a user who no longer points
// back; see the admin layer for why this is preserved.
func (e *Engine) ForcePair(ctx context.Context, a, b int64) error {
	e.pairMu.Lock()
	err := e.appCtx.Directory.Pair(ctx, a, b)
	e.pairMu.Unlock()
	if err != nil {
		return err
	}
	_ = e.notifier.Notify(ctx, a, notify.EventPartnerFound)
	_ = e.notifier.Notify(ctx, b, notify.EventPartnerFound)
	return nil
}

// ForceUnpair ends the dialog for id exactly like a user-initiated stop,
// including the partner notice.
func (e *Engine) ForceUnpair(ctx context.Context, id int64) (int64, bool, error) {
	return e.endDialogAndNotify(ctx, id)
}

// --- helpers ---

func (e *Engine) findMatch(ctx context.Context, id int64) (int64, bool, error) {
	e.pairMu.Lock()
	defer e.pairMu.Unlock()
	return e.matcher.FindMatch(ctx, id)
}

func (e *Engine) endDialogAndNotify(ctx context.Context, id int64) (int64, bool, error) {
	partner, had, err := e.EndDialogFor(ctx, id)
	if err != nil || !had {
		return 0, false, err
	}
	if err := e.notifier.Notify(ctx, partner, notify.EventPartnerLeft); err != nil {
		e.appCtx.Logger.Warn("partner-left notification failed", "user", partner, "err", err)
	}
	return partner, true, nil
}
