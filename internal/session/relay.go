package session

import (
	"context"
	"fmt"

	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/notify"
)

// Relay forwards one payload from a paired user to their partner.
//
// Best-effort, at-most-once: a transport failure is reported as
// ErrDeliveryFailed and the dialog stays paired. The partner read is a
// snapshot taken without the pairing lock; a partner who disconnects between
// the read and the send only surfaces as a delivery failure.
func (e *Engine) Relay(ctx context.Context, from int64, p notify.Payload) error {
	if !p.Valid() {
		return fmt.Errorf("invalid relay payload kind %q", p.Kind)
	}

	user, err := e.appCtx.Directory.GetUser(ctx, from)
	if err != nil {
		return err
	}
	if user.Blocked {
		return apperr.ErrBlocked
	}

	partner, ok, err := e.appCtx.Directory.Partner(ctx, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNoPartner
	}

	if err := e.notifier.Forward(ctx, partner, p); err != nil {
		e.appCtx.Logger.Warn("relay delivery failed", "from", from, "to", partner, "err", err)
		return fmt.Errorf("%w: %v", apperr.ErrDeliveryFailed, err)
	}
	return nil
}
