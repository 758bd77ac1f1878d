package report

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noxchat/noxd/internal/db"
)

// GormSink persists reports and reactions in the relational store.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(database *gorm.DB) *GormSink {
	return &GormSink{db: database}
}

var _ Sink = (*GormSink)(nil)

func (s *GormSink) File(ctx context.Context, reporterID int64, reason Reason, detail string) (string, error) {
	row := db.Report{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		Reason:     string(reason),
		Detail:     detail,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *GormSink) ListRecent(ctx context.Context, limit int) ([]Report, error) {
	var rows []db.Report
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, Report{
			ID:         row.ID,
			ReporterID: row.ReporterID,
			Reason:     Reason(row.Reason),
			Detail:     row.Detail,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// React upserts on the (user_id, partner_id) composite key so a changed
// opinion overwrites the old one.
func (s *GormSink) React(ctx context.Context, userID, partnerID int64, kind ReactionKind) error {
	row := db.Reaction{
		UserID:    userID,
		PartnerID: partnerID,
		Kind:      string(kind),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "partner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind"}),
		}).
		Create(&row).Error
}

func (s *GormSink) ReactionFor(ctx context.Context, userID, partnerID int64) (ReactionKind, bool, error) {
	var row db.Reaction
	err := s.db.WithContext(ctx).
		First(&row, "user_id = ? AND partner_id = ?", userID, partnerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ReactionKind(row.Kind), true, nil
}
