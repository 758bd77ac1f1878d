// Package gormdir is the relational Directory backend. MySQL in production,
// sqlite in tests; both go through the same gorm queries.
package gormdir

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/db"
	"github.com/noxchat/noxd/internal/directory"
)

// Store provides data access methods for the users table.
type Store struct {
	db *gorm.DB
}

// New creates a Store bound to the given DB connection.
func New(database *gorm.DB) *Store {
	return &Store{db: database}
}

var _ directory.Directory = (*Store)(nil)

// EnsureUser creates the row if absent; an existing row only has its handle
// refreshed, and only when it actually changed. The insert carries an
// on-conflict clause so two racing first contacts for the same id both
// succeed instead of the loser hitting the primary key.
func (s *Store) EnsureUser(ctx context.Context, id int64, handle string) error {
	var row db.User
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&db.User{ID: id, Handle: handle}).Error
	case err != nil:
		return err
	}

	if row.Handle == handle {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Update("handle", handle).Error
}

func (s *Store) GetUser(ctx context.Context, id int64) (*directory.User, error) {
	var row db.User
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	u := toDomain(row)
	return &u, nil
}

func (s *Store) SetInSearch(ctx context.Context, id int64, inSearch bool) error {
	return s.setField(ctx, id, "in_search", inSearch)
}

func (s *Store) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return s.setField(ctx, id, "blocked", blocked)
}

func (s *Store) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	return s.setField(ctx, id, "is_admin", isAdmin)
}

// UpdateProfile applies only the fields present in upd. Absent fields are
// left untouched.
func (s *Store) UpdateProfile(ctx context.Context, id int64, upd directory.ProfileUpdate) error {
	if upd.Empty() {
		return nil
	}
	fields := map[string]interface{}{}
	if upd.Gender != nil {
		fields["gender"] = string(*upd.Gender)
	}
	if upd.SeekingGender != nil {
		fields["seeking_gender"] = string(*upd.SeekingGender)
	}
	if upd.Age != nil {
		fields["age"] = *upd.Age
	}
	if upd.Interests != nil {
		fields["interests"] = *upd.Interests
	}
	if upd.Phone != nil {
		fields["phone"] = *upd.Phone
	}
	return s.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Store) Partner(ctx context.Context, id int64) (int64, bool, error) {
	var row db.User
	if err := s.db.WithContext(ctx).Select("partner_id").First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, apperr.ErrNotFound
		}
		return 0, false, err
	}
	if row.PartnerID == nil {
		return 0, false, nil
	}
	return *row.PartnerID, true, nil
}

// Candidates returns the matcher's scan set, most recently registered first.
func (s *Store) Candidates(ctx context.Context, exclude int64, gender directory.Gender, limit int) ([]directory.User, error) {
	query := s.db.WithContext(ctx).
		Where("id != ?", exclude).
		Where("in_search = ?", true).
		Where("partner_id IS NULL").
		Where("blocked = ?", false)
	if gender == directory.GenderMale || gender == directory.GenderFemale {
		query = query.Where("gender = ?", string(gender))
	}

	var rows []db.User
	err := query.Order("registered_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

// Pair sets both sides of the dialog in one transaction. Prior partners of
// either side are intentionally not touched; force-pair relies on that.
func (s *Store) Pair(ctx context.Context, a, b int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.User{}).Where("id = ?", a).
			Updates(map[string]interface{}{"partner_id": b, "in_search": false}).Error; err != nil {
			return err
		}
		return tx.Model(&db.User{}).Where("id = ?", b).
			Updates(map[string]interface{}{"partner_id": a, "in_search": false}).Error
	})
}

// Unpair clears partner_id on id and its current partner. No-op when id is
// not paired.
func (s *Store) Unpair(ctx context.Context, id int64) (int64, bool, error) {
	partner, ok, err := s.Partner(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	err = s.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id IN (?, ?)", id, partner).
		Update("partner_id", nil).Error
	if err != nil {
		return 0, false, err
	}
	return partner, true, nil
}

func (s *Store) Stats(ctx context.Context) (directory.Stats, error) {
	var out directory.Stats
	if err := s.db.WithContext(ctx).Model(&db.User{}).Count(&out.TotalUsers).Error; err != nil {
		return out, err
	}
	if err := s.db.WithContext(ctx).Model(&db.User{}).
		Where("in_search = ?", true).Count(&out.Searching).Error; err != nil {
		return out, err
	}
	var paired int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).
		Where("partner_id IS NOT NULL").Count(&paired).Error; err != nil {
		return out, err
	}
	// two rows per dialog
	out.ActiveDialogs = paired / 2
	return out, nil
}

func (s *Store) ListSearching(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&db.User{}).
		Where("in_search = ?", true).
		Where("partner_id IS NULL").
		Order("registered_at DESC, id DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListDialogPairs returns active dialogs with each user in at most one pair.
func (s *Store) ListDialogPairs(ctx context.Context, limit int) ([]directory.DialogPair, error) {
	var rows []db.User
	err := s.db.WithContext(ctx).
		Select("id", "partner_id").
		Where("partner_id IS NOT NULL").
		Limit(limit * 2).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	pairs := make([]directory.DialogPair, 0, len(rows)/2)
	seen := map[int64]bool{}
	for _, row := range rows {
		if row.PartnerID == nil || seen[row.ID] || seen[*row.PartnerID] {
			continue
		}
		pairs = append(pairs, directory.DialogPair{A: row.ID, B: *row.PartnerID})
		seen[row.ID] = true
		seen[*row.PartnerID] = true
		if len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]directory.User, error) {
	var rows []db.User
	err := s.db.WithContext(ctx).
		Order("registered_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

func (s *Store) ListBlocked(ctx context.Context) ([]directory.User, error) {
	var rows []db.User
	err := s.db.WithContext(ctx).Where("blocked = ?", true).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&db.User{}).
		Where("is_admin = ?", true).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) CountRecent(ctx context.Context, window time.Duration) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.User{}).
		Where("registered_at >= ?", time.Now().Add(-window)).
		Count(&count).Error
	return count, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- helpers ---

func (s *Store) setField(ctx context.Context, id int64, column string, value bool) error {
	return s.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Update(column, value).Error
}

func toDomain(row db.User) directory.User {
	return directory.User{
		ID:            row.ID,
		Handle:        row.Handle,
		Phone:         row.Phone,
		RegisteredAt:  row.RegisteredAt,
		InSearch:      row.InSearch,
		PartnerID:     row.PartnerID,
		Blocked:       row.Blocked,
		IsAdmin:       row.IsAdmin,
		Gender:        directory.Gender(row.Gender),
		SeekingGender: directory.Gender(row.SeekingGender),
		Age:           row.Age,
		Interests:     row.Interests,
	}
}

func toDomainSlice(rows []db.User) []directory.User {
	out := make([]directory.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out
}
