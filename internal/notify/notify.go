// Package notify defines the boundary to the chat-platform transport: the
// engine produces notification intents and relay payloads, the transport
// delivers them. Delivery results are returned, never swallowed; callers of
// session-state notifications discard them on purpose, relay callers do not.
package notify

import (
	"context"
	"log/slog"
)

// Kind enumerates the payload kinds a dialog can carry. FileID references
// media already stored at the transport; the engine forwards it unmodified.
type Kind string

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindDocument  Kind = "document"
	KindSticker   Kind = "sticker"
	KindVoice     Kind = "voice"
	KindVideo     Kind = "video"
	KindVideoNote Kind = "video_note"
	KindAnimation Kind = "animation"
	KindAudio     Kind = "audio"
)

// Payload is one message/media unit relayed between partners.
type Payload struct {
	Kind    Kind   `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Valid reports whether the payload names a known kind and carries the
// content that kind requires.
func (p Payload) Valid() bool {
	switch p.Kind {
	case KindText:
		return p.Text != ""
	case KindPhoto, KindDocument, KindSticker, KindVoice,
		KindVideo, KindVideoNote, KindAnimation, KindAudio:
		return p.FileID != ""
	}
	return false
}

// Event is a session-state notification intent.
type Event string

const (
	EventPartnerFound Event = "partner_found"
	EventPartnerLeft  Event = "partner_left"
	EventBlocked      Event = "blocked"
	EventUnblocked    Event = "unblocked"
)

// Notifier is implemented by the transport layer.
type Notifier interface {
	// Notify delivers a session-state event. Fire-and-forget at the call
	// sites; the error return keeps the contract visible.
	Notify(ctx context.Context, userID int64, event Event) error

	// Forward delivers a relay payload to userID.
	Forward(ctx context.Context, userID int64, p Payload) error
}

// LogNotifier is the default sink when no transport is attached: it records
// intents on the logger and always succeeds.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, userID int64, event Event) error {
	n.Logger.Info("notification intent", "user", userID, "event", string(event))
	return nil
}

func (n *LogNotifier) Forward(ctx context.Context, userID int64, p Payload) error {
	n.Logger.Info("relay intent", "user", userID, "kind", string(p.Kind))
	return nil
}
