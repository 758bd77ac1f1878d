package gormdir_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noxchat/noxd/internal/apperr"
	"github.com/noxchat/noxd/internal/db"
	"github.com/noxchat/noxd/internal/directory"
	"github.com/noxchat/noxd/internal/directory/gormdir"
)

// setup in-memory DB
func setupStore(t *testing.T) (*gormdir.Store, *gorm.DB) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gormdir.New(database), database
}

func createUser(t *testing.T, database *gorm.DB, u db.User) {
	t.Helper()
	require.NoError(t, database.Create(&u).Error)
}

func TestEnsureUserIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	require.NoError(t, store.EnsureUser(ctx, 1, "alice"))
	first, err := store.GetUser(ctx, 1)
	require.NoError(t, err)

	// same id and handle: no visible change
	require.NoError(t, store.EnsureUser(ctx, 1, "alice"))
	second, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// changed handle: only the handle refreshes
	require.NoError(t, store.EnsureUser(ctx, 1, "alice2"))
	third, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice2", third.Handle)
	assert.Equal(t, first.RegisteredAt, third.RegisteredAt)
	assert.False(t, third.InSearch)
	assert.Nil(t, third.PartnerID)
	assert.False(t, third.Blocked)
	assert.False(t, third.IsAdmin)
}

func TestEnsureUserConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()

	// shared-cache DB on a single connection so goroutines interleave
	// between the existence check and the insert
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(&db.User{}))
	store := gormdir.New(database)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// every racer is a first contact for the same id
			assert.NoError(t, store.EnsureUser(ctx, 7, "alice"))
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, database.Model(&db.User{}).Where("id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Handle)
}

func TestGetUserNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	_, err := store.GetUser(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfilePartial(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	require.NoError(t, store.EnsureUser(ctx, 1, "a"))

	gender := directory.GenderFemale
	interests := "music, art"
	require.NoError(t, store.UpdateProfile(ctx, 1, directory.ProfileUpdate{
		Gender:    &gender,
		Interests: &interests,
	}))

	// age-only update must not touch the rest
	age := 21
	require.NoError(t, store.UpdateProfile(ctx, 1, directory.ProfileUpdate{Age: &age}))

	u, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, directory.GenderFemale, u.Gender)
	assert.Equal(t, "music, art", u.Interests)
	assert.Equal(t, 21, u.Age)

	// empty update is a no-op
	require.NoError(t, store.UpdateProfile(ctx, 1, directory.ProfileUpdate{}))
}

func TestPairAndUnpairSymmetry(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	require.NoError(t, store.EnsureUser(ctx, 1, "a"))
	require.NoError(t, store.EnsureUser(ctx, 2, "b"))
	require.NoError(t, store.SetInSearch(ctx, 1, true))
	require.NoError(t, store.SetInSearch(ctx, 2, true))

	require.NoError(t, store.Pair(ctx, 1, 2))

	u1, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	u2, err := store.GetUser(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, u1.PartnerID)
	require.NotNil(t, u2.PartnerID)
	assert.Equal(t, int64(2), *u1.PartnerID)
	assert.Equal(t, int64(1), *u2.PartnerID)
	assert.False(t, u1.InSearch)
	assert.False(t, u2.InSearch)

	partner, had, err := store.Unpair(ctx, 1)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, int64(2), partner)

	u1, _ = store.GetUser(ctx, 1)
	u2, _ = store.GetUser(ctx, 2)
	assert.Nil(t, u1.PartnerID)
	assert.Nil(t, u2.PartnerID)

	// second unpair is a no-op
	_, had, err = store.Unpair(ctx, 1)
	require.NoError(t, err)
	assert.False(t, had)
}

func TestCandidatesFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store, database := setupStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	partner := int64(99)
	createUser(t, database, db.User{ID: 1, InSearch: true, Gender: "female", RegisteredAt: base.Add(1 * time.Hour)})
	createUser(t, database, db.User{ID: 2, InSearch: true, Gender: "male", RegisteredAt: base.Add(2 * time.Hour)})
	createUser(t, database, db.User{ID: 3, InSearch: true, Gender: "female", RegisteredAt: base.Add(3 * time.Hour)})
	createUser(t, database, db.User{ID: 4, InSearch: false, Gender: "female", RegisteredAt: base.Add(4 * time.Hour)})
	createUser(t, database, db.User{ID: 5, InSearch: true, Blocked: true, Gender: "female", RegisteredAt: base.Add(5 * time.Hour)})
	createUser(t, database, db.User{ID: 6, InSearch: true, PartnerID: &partner, Gender: "female", RegisteredAt: base.Add(6 * time.Hour)})

	// unset preference: everyone eligible, newest first
	all, err := store.Candidates(ctx, 0, directory.GenderUnset, 50)
	require.NoError(t, err)
	ids := make([]int64, 0, len(all))
	for _, u := range all {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{3, 2, 1}, ids)

	// gender narrowing
	females, err := store.Candidates(ctx, 0, directory.GenderFemale, 50)
	require.NoError(t, err)
	require.Len(t, females, 2)
	assert.Equal(t, int64(3), females[0].ID)
	assert.Equal(t, int64(1), females[1].ID)

	// requester excluded from own scan
	excl, err := store.Candidates(ctx, 3, directory.GenderUnset, 50)
	require.NoError(t, err)
	for _, u := range excl {
		assert.NotEqual(t, int64(3), u.ID)
	}
}

func TestStatsAndLists(t *testing.T) {
	ctx := context.Background()
	store, database := setupStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p2, p1 := int64(2), int64(1)
	createUser(t, database, db.User{ID: 1, PartnerID: &p2, RegisteredAt: base})
	createUser(t, database, db.User{ID: 2, PartnerID: &p1, RegisteredAt: base})
	createUser(t, database, db.User{ID: 3, InSearch: true, RegisteredAt: base})
	createUser(t, database, db.User{ID: 4, Blocked: true, RegisteredAt: base})
	createUser(t, database, db.User{ID: 5, IsAdmin: true, RegisteredAt: time.Now().UTC()})

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.Searching)
	assert.Equal(t, int64(1), stats.ActiveDialogs)

	searching, err := store.ListSearching(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, searching)

	pairs, err := store.ListDialogPairs(ctx, 50)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{pairs[0].A, pairs[0].B})

	blocked, err := store.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, int64(4), blocked[0].ID)

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, admins)

	recent, err := store.CountRecent(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recent)
}
