package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/notify"
	"github.com/noxchat/noxd/internal/session"
)

func textPayload(s string) notify.Payload {
	return notify.Payload{Kind: notify.KindText, Text: s}
}

func TestRelayDeliversToPartner(t *testing.T) {
	ctx := context.Background()
	engine, store, notifier := setupEngine(t)
	register(t, engine, store, 1)
	register(t, engine, store, 2)
	pairUp(t, engine, 1, 2)

	require.NoError(t, engine.Relay(ctx, 1, textPayload("hi")))
	require.NoError(t, engine.Relay(ctx, 1, notify.Payload{Kind: notify.KindPhoto, FileID: "f-1", Caption: "pic"}))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.forwards, 2)
	assert.Equal(t, int64(2), notifier.forwards[0].To)
	assert.Equal(t, "hi", notifier.forwards[0].Payload.Text)
	assert.Equal(t, notify.KindPhoto, notifier.forwards[1].Payload.Kind)
	assert.Equal(t, "f-1", notifier.forwards[1].Payload.FileID)
}

func TestRelayRejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t)
	register(t, engine, store, 1)
	register(t, engine, store, 2)
	pairUp(t, engine, 1, 2)

	assert.Error(t, engine.Relay(ctx, 1, notify.Payload{Kind: notify.KindText}))
	assert.Error(t, engine.Relay(ctx, 1, notify.Payload{Kind: "carrier_pigeon", Text: "hi"}))
	assert.Error(t, engine.Relay(ctx, 1, notify.Payload{Kind: notify.KindPhoto}))
}

func TestRelayWithoutPartner(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t)
	register(t, engine, store, 1)

	err := engine.Relay(ctx, 1, textPayload("hello?"))
	assert.ErrorIs(t, err, apperr.ErrNoPartner)
}

func TestRelayBlockedSender(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t)
	register(t, engine, store, 1)
	register(t, engine, store, 2)
	pairUp(t, engine, 1, 2)
	require.NoError(t, store.SetBlocked(ctx, 1, true))

	err := engine.Relay(ctx, 1, textPayload("hi"))
	assert.ErrorIs(t, err, apperr.ErrBlocked)
}

func TestRelayDeliveryFailureKeepsDialog(t *testing.T) {
	ctx := context.Background()
	engine, store, notifier := setupEngine(t)
	register(t, engine, store, 1)
	register(t, engine, store, 2)
	pairUp(t, engine, 1, 2)

	notifier.failForward = true
	err := engine.Relay(ctx, 1, textPayload("hi"))
	assert.ErrorIs(t, err, apperr.ErrDeliveryFailed)

	// the dialog survives the failed delivery
	u1, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, u1.PartnerID)
	assert.Equal(t, int64(2), *u1.PartnerID)
	assert.Equal(t, session.StatePaired, session.StateOf(u1))

	// and a retry goes through once the transport recovers
	notifier.failForward = false
	require.NoError(t, engine.Relay(ctx, 1, textPayload("hi again")))
}
