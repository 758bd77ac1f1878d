package adminapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noxchat/noxd/internal/admin"
	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/cache"
	"github.com/noxchat/noxd/internal/config"
	"github.com/noxchat/noxd/internal/db"
	"github.com/noxchat/noxd/internal/directory/gormdir"
	"github.com/noxchat/noxd/internal/notify"
	"github.com/noxchat/noxd/internal/report"
	"github.com/noxchat/noxd/internal/service/adminapi"
	"github.com/noxchat/noxd/internal/session"
)

const adminID = int64(100)

func setupRouter(t *testing.T) (*mux.Router, *gormdir.Store, report.Sink) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(&db.User{}, &db.Report{}, &db.Reaction{}))

	mr := miniredis.RunT(t)
	rdb := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	store := gormdir.New(database)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(store, rdb, log)

	notifier := &notify.LogNotifier{Logger: log}
	engine := session.NewEngine(appCtx, notifier)

	cfg := &config.Config{}
	cfg.Admin.DeveloperID = adminID
	admins := admin.NewService(appCtx, engine, notifier, cfg)

	sink := report.NewGormSink(database)
	router := mux.NewRouter()
	adminapi.NewRegistrar(appCtx, admins, sink).Register(router)
	return router, store, sink
}

func do(t *testing.T, router *mux.Router, method, path string, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = bytes.NewReader([]byte("{}"))
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestActorHeaderRequired(t *testing.T) {
	router, _, _ := setupRouter(t)

	rec := do(t, router, http.MethodGet, "/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/admin/stats", "nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnauthorizedActorGetsForbidden(t *testing.T) {
	router, _, _ := setupRouter(t)

	for _, path := range []string{
		"/v1/admin/stats", "/v1/admin/users", "/v1/admin/reports", "/v1/admin/export.csv",
	} {
		rec := do(t, router, http.MethodGet, path, "999", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec := do(t, router, http.MethodPost, "/v1/admin/pair", "999", map[string]any{"a": 1, "b": 2})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestForcePairValidation(t *testing.T) {
	router, _, _ := setupRouter(t)
	actor := fmt.Sprint(adminID)

	rec := do(t, router, http.MethodPost, "/v1/admin/pair", actor, map[string]any{"a": 1, "b": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/admin/pair", actor, map[string]any{"a": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminFlowOverHTTP(t *testing.T) {
	ctx := context.Background()
	router, store, sink := setupRouter(t)
	actor := fmt.Sprint(adminID)

	require.NoError(t, store.EnsureUser(ctx, 1, "a"))
	require.NoError(t, store.EnsureUser(ctx, 2, "b"))
	_, err := sink.File(ctx, 1, report.ReasonSpam, "")
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/v1/admin/pair", actor, map[string]any{"a": 1, "b": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/admin/user?id=1", actor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user struct {
		PartnerID *int64 `json:"PartnerID"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.NotNil(t, user.PartnerID)
	assert.Equal(t, int64(2), *user.PartnerID)

	rec = do(t, router, http.MethodGet, "/v1/admin/stats", actor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats admin.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.ActiveDialogs)

	rec = do(t, router, http.MethodGet, "/v1/admin/reports", actor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports struct {
		Reports []report.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports.Reports, 1)
	assert.Equal(t, report.ReasonSpam, reports.Reports[0].Reason)

	rec = do(t, router, http.MethodPost, "/v1/admin/unpair", actor, map[string]any{"user_id": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	u1, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, u1.PartnerID)

	rec = do(t, router, http.MethodPost, "/v1/admin/block", actor, map[string]any{"user_id": 2, "blocked": true})
	require.Equal(t, http.StatusOK, rec.Code)
	u2, err := store.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, u2.Blocked)

	rec = do(t, router, http.MethodGet, "/v1/admin/export.csv", actor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,handle,registered_at"))
}
