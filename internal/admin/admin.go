// Package admin bypasses normal matching: force-pair, force-unpair, block,
// promote, plus the reporting views. Every operation authorizes the acting
// user first and fails closed.
package admin

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/cache"
	"github.com/noxchat/noxd/internal/config"
	"github.com/noxchat/noxd/internal/directory"
	"github.com/noxchat/noxd/internal/notify"
	"github.com/noxchat/noxd/internal/session"
)

const (
	listLimit       = 5000
	dialogListLimit = 50
)

// Overview aggregates the counters shown on the admin dashboard.
type Overview struct {
	TotalUsers    int64 `json:"total_users"`
	Searching     int64 `json:"searching"`
	ActiveDialogs int64 `json:"active_dialogs"`
	Blocked       int64 `json:"blocked"`
	NewLastDay    int64 `json:"new_last_day"`
	Admins        int64 `json:"admins"`
}

type Service struct {
	appCtx   *app.Context
	engine   *session.Engine
	notifier notify.Notifier

	developerID int64
	allowList   map[int64]bool
}

func NewService(appCtx *app.Context, engine *session.Engine, notifier notify.Notifier, cfg *config.Config) *Service {
	allow := make(map[int64]bool, len(cfg.Admin.AllowList))
	for _, id := range cfg.Admin.AllowList {
		allow[id] = true
	}
	return &Service{
		appCtx:      appCtx,
		engine:      engine,
		notifier:    notifier,
		developerID: cfg.Admin.DeveloperID,
		allowList:   allow,
	}
}

// IsAuthorized grants elevated privileges to the developer identity, the
// static allow-list, and users flagged is_admin in the Directory. This is
// the single authorization check every admin call site goes through.
func (s *Service) IsAuthorized(ctx context.Context, userID int64) bool {
	if userID != 0 && userID == s.developerID {
		return true
	}
	if s.allowList[userID] {
		return true
	}
	user, err := s.appCtx.Directory.GetUser(ctx, userID)
	return err == nil && user.IsAdmin
}

func (s *Service) authorize(ctx context.Context, actor int64) error {
	if !s.IsAuthorized(ctx, actor) {
		return apperr.ErrForbidden
	}
	return nil
}

// ForcePair pairs a and b unconditionally, even if blocked or already
// paired. A displaced prior partner keeps its one-way partner reference;
// that behavior is inherited and pinned by tests, pending product-owner
// review.
func (s *Service) ForcePair(ctx context.Context, actor, a, b int64) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	return s.engine.ForcePair(ctx, a, b)
}

func (s *Service) ForceUnpair(ctx context.Context, actor, id int64) (int64, bool, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return 0, false, err
	}
	return s.engine.ForceUnpair(ctx, id)
}

func (s *Service) SetBlocked(ctx context.Context, actor, id int64, blocked bool) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	if err := s.appCtx.Directory.SetBlocked(ctx, id, blocked); err != nil {
		return err
	}
	event := notify.EventBlocked
	if !blocked {
		event = notify.EventUnblocked
	}
	// fire-and-forget notice to the affected user
	_ = s.notifier.Notify(ctx, id, event)
	return nil
}

func (s *Service) SetAdmin(ctx context.Context, actor, id int64, isAdmin bool) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	return s.appCtx.Directory.SetAdmin(ctx, id, isAdmin)
}

func (s *Service) GetUser(ctx context.Context, actor, id int64) (*directory.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.GetUser(ctx, id)
}

// Stats returns the dashboard counters. Cache-first:
//  1. read the cached overview from Redis
//  2. on miss, aggregate from the Directory
//  3. store the fresh overview with a short TTL
func (s *Service) Stats(ctx context.Context, actor int64) (Overview, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return Overview{}, err
	}

	key := s.appCtx.RedisCache.KeyForStats()
	if cached, _ := s.appCtx.RedisCache.Get(ctx, key); cached != "" {
		var out Overview
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return out, nil
		}
	}

	counts, err := s.appCtx.Directory.Stats(ctx)
	if err != nil {
		return Overview{}, err
	}
	blocked, err := s.appCtx.Directory.ListBlocked(ctx)
	if err != nil {
		return Overview{}, err
	}
	recent, err := s.appCtx.Directory.CountRecent(ctx, 24*time.Hour)
	if err != nil {
		return Overview{}, err
	}
	admins, err := s.appCtx.Directory.ListAdmins(ctx)
	if err != nil {
		return Overview{}, err
	}

	out := Overview{
		TotalUsers:    counts.TotalUsers,
		Searching:     counts.Searching,
		ActiveDialogs: counts.ActiveDialogs,
		Blocked:       int64(len(blocked)),
		NewLastDay:    recent,
		Admins:        int64(len(admins)),
	}
	if body, err := json.Marshal(out); err == nil {
		_ = s.appCtx.RedisCache.Set(ctx, key, string(body), cache.StatsTTL)
	}
	return out, nil
}

func (s *Service) ListUsers(ctx context.Context, actor int64) ([]directory.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.ListUsers(ctx, listLimit)
}

func (s *Service) ListSearching(ctx context.Context, actor int64) ([]int64, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.ListSearching(ctx, listLimit)
}

func (s *Service) ListDialogPairs(ctx context.Context, actor int64) ([]directory.DialogPair, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.ListDialogPairs(ctx, dialogListLimit)
}

func (s *Service) ListBlocked(ctx context.Context, actor int64) ([]directory.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.ListBlocked(ctx)
}

func (s *Service) ListAdmins(ctx context.Context, actor int64) ([]int64, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.appCtx.Directory.ListAdmins(ctx)
}

// ExportCSV streams the user table as CSV.
func (s *Service) ExportCSV(ctx context.Context, actor int64, w io.Writer) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	users, err := s.appCtx.Directory.ListUsers(ctx, listLimit)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "handle", "registered_at", "in_search", "partner_id", "blocked", "gender", "seeking_gender", "age", "interests"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, u := range users {
		partner := ""
		if u.PartnerID != nil {
			partner = strconv.FormatInt(*u.PartnerID, 10)
		}
		row := []string{
			strconv.FormatInt(u.ID, 10),
			u.Handle,
			u.RegisteredAt.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatBool(u.InSearch),
			partner,
			strconv.FormatBool(u.Blocked),
			string(u.Gender),
			string(u.SeekingGender),
			strconv.Itoa(u.Age),
			u.Interests,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
