package repository_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusbot/internal/db"
	"focusbot/internal/model"
	"focusbot/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	_, err = db.RunMigrations(database, migrationsDir)
	require.NoError(t, err)
	return database
}

func createMember(t *testing.T, repo *repository.MemberRepository, id, name string) model.Member {
	t.Helper()
	now := time.Now().UTC()
	member := model.Member{ID: id, Name: name, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), &member))
	return member
}

func TestMemberRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemberRepository(openTestDB(t))
	created := createMember(t, repo, "m-1", "Ada")

	byName, err := repo.GetByName(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "Ada", byName.Name)

	byID, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "hash", byID.PasswordHash)

	_, err = repo.GetByID(ctx, "missing")
	assert.Equal(t, repository.ErrNotFound, err)

	duplicate := model.Member{ID: "m-2", Name: "ADA", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err = repo.Create(ctx, &duplicate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
}

func TestTemplateRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTemplateRepository(openTestDB(t))
	testTemplateStore(t, ctx, repo)
}

func TestRedisTemplateStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())

	testTemplateStore(t, ctx, repository.NewRedisTemplateStore(client))
}

func testTemplateStore(t *testing.T, ctx context.Context, store repository.TemplateStore) {
	t.Helper()

	_, err := store.Get(ctx, "chan-1")
	assert.Equal(t, repository.ErrNotFound, err)

	saved := model.SettingsTemplate{
		ChannelID: "chan-1",
		Settings:  json.RawMessage(`{"workDuration":50}`),
		SavedBy:   "m-1",
		UpdatedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, &saved))

	saved.Settings = json.RawMessage(`{"workDuration":45}`)
	require.NoError(t, store.Save(ctx, &saved))

	got, err := store.Get(ctx, "chan-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"workDuration":45}`, string(got.Settings))
	assert.Equal(t, "m-1", got.SavedBy)
	assert.True(t, saved.UpdatedAt.Equal(got.UpdatedAt))

	require.NoError(t, store.Delete(ctx, "chan-1"))
	assert.Equal(t, repository.ErrNotFound, store.Delete(ctx, "chan-1"))
}

func TestBanRepository(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	members := repository.NewMemberRepository(database)
	bans := repository.NewBanRepository(database)
	createMember(t, members, "m-1", "ada")
	createMember(t, members, "m-2", "grace")

	banned, err := bans.IsBanned(ctx, "m-2")
	require.NoError(t, err)
	assert.False(t, banned)

	ban := model.Ban{MemberID: "m-2", BannedBy: "m-1", CreatedAt: time.Now()}
	require.NoError(t, bans.Ban(ctx, &ban))
	require.NoError(t, bans.Ban(ctx, &ban))

	banned, err = bans.IsBanned(ctx, "m-2")
	require.NoError(t, err)
	assert.True(t, banned)

	list, err := bans.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m-1", list[0].BannedBy)

	require.NoError(t, bans.Unban(ctx, "m-2"))
	assert.Equal(t, repository.ErrNotFound, bans.Unban(ctx, "m-2"))

	// Bans reference registered members.
	require.Error(t, bans.Ban(ctx, &model.Ban{MemberID: "ghost", BannedBy: "m-1", CreatedAt: time.Now()}))
}
