// Package report stores moderation reports and post-dialog reactions. The
// core never interprets report content; it only keeps it for admins.
package report

import (
	"context"
	"time"
)

// Reason is the fixed enumeration a reporter picks from.
type Reason string

const (
	ReasonInsults       Reason = "insults"
	ReasonInappropriate Reason = "inappropriate"
	ReasonSpam          Reason = "spam"
	ReasonBadBehavior   Reason = "bad_behavior"
	ReasonOther         Reason = "other"
)

func ValidReason(r Reason) bool {
	switch r {
	case ReasonInsults, ReasonInappropriate, ReasonSpam, ReasonBadBehavior, ReasonOther:
		return true
	}
	return false
}

// ReactionKind is a post-dialog opinion about a former partner.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

func ValidReaction(k ReactionKind) bool {
	return k == ReactionLike || k == ReactionDislike
}

// Report as exposed to admins.
type Report struct {
	ID         string    `json:"id"`
	ReporterID int64     `json:"reporter_id"`
	Reason     Reason    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sink accepts reports and reactions. Backed by the relational store in
// mysql mode and by process memory in blob mode.
type Sink interface {
	// File stores a report and returns its id.
	File(ctx context.Context, reporterID int64, reason Reason, detail string) (string, error)

	// ListRecent returns the newest reports first.
	ListRecent(ctx context.Context, limit int) ([]Report, error)

	// React records a like/dislike toward a former partner, overwriting any
	// earlier reaction for the same pair.
	React(ctx context.Context, userID, partnerID int64, kind ReactionKind) error

	// ReactionFor returns the recorded reaction, if any.
	ReactionFor(ctx context.Context, userID, partnerID int64) (ReactionKind, bool, error)
}
