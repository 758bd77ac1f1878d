package db

import (
	"time"
)

// User row backing the Directory.
//
// ID is the externally assigned chat-platform id, so there is no
// auto-increment. PartnerID is nullable; symmetry across the two rows of a
// dialog is maintained by the Directory layer, never by ad-hoc updates.
//
// Indexes:
//   - idx_users_candidates(in_search, blocked, gender) narrows the matcher's
//     candidate scan.
//   - registered_at is indexed for the most-recent-first orderings.
type User struct {
	ID            int64     `gorm:"primaryKey;autoIncrement:false"`
	Handle        string    `gorm:"size:64"`
	Phone         string    `gorm:"size:32"`
	RegisteredAt  time.Time `gorm:"autoCreateTime;index"`
	InSearch      bool      `gorm:"not null;default:false;index:idx_users_candidates,priority:1"`
	PartnerID     *int64    `gorm:"index"`
	Blocked       bool      `gorm:"not null;default:false;index:idx_users_candidates,priority:2"`
	IsAdmin       bool      `gorm:"not null;default:false"`
	Gender        string    `gorm:"size:16;index:idx_users_candidates,priority:3"`
	SeekingGender string    `gorm:"size:16"`
	Age           int
	Interests     string    `gorm:"size:512"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Report is a moderation report filed by a user about their partner.
// The core stores reports verbatim and never interprets them.
type Report struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ReporterID int64     `gorm:"index;not null"`
	Reason     string    `gorm:"size:32;not null"`
	Detail     string    `gorm:"size:1024"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Reaction records a post-dialog opinion (like/dislike) toward a former
// partner. Composite PK gives one row per (user, partner) with overwrite.
type Reaction struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"`
	PartnerID int64     `gorm:"primaryKey;autoIncrement:false"`
	Kind      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
