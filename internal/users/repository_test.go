package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelcalc/jewelgate/internal/infra"
	"github.com/jewelcalc/jewelgate/internal/logging"
)

func strPtr(s string) *string { return &s }

func newSQLiteRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := infra.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLiteRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func newCachedRepository(t *testing.T) (Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewCachedRepository(NewMemoryRepository(), cache, time.Minute, logging.Discard()), mr
}

func TestRepositoryContract(t *testing.T) {
	backends := map[string]func(t *testing.T) Repository{
		"memory": func(*testing.T) Repository { return NewMemoryRepository() },
		"sqlite": func(t *testing.T) Repository { return newSQLiteRepository(t) },
		"cached": func(t *testing.T) Repository {
			repo, _ := newCachedRepository(t)
			return repo
		},
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			exerciseRepository(t, build(t))
		})
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.Lookup(ctx, "7")
	require.ErrorIs(t, err, ErrNotFound)

	first, err := repo.Upsert(ctx, Record{TelegramID: "7", Phone: strPtr("+79990000000"), Username: strPtr("anna"), Role: RoleUser, AddedBy: "100", AddedAt: base})
	require.NoError(t, err)
	assert.Equal(t, "7", first.TelegramID)
	assert.True(t, base.Equal(first.AddedAt))

	_, err = repo.Upsert(ctx, Record{TelegramID: "8", Role: RoleUser, AddedBy: "100", AddedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "8", list[0].TelegramID)
	assert.Equal(t, "7", list[1].TelegramID)

	got, err := repo.Lookup(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+79990000000", *got.Phone)

	updated, err := repo.Upsert(ctx, Record{TelegramID: "7", Role: RoleAdmin, AddedBy: "200", AddedAt: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)
	assert.Nil(t, updated.Phone)
	assert.Nil(t, updated.Username)

	got, err = repo.Lookup(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, "200", got.AddedBy)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "7", list[0].TelegramID)

	require.NoError(t, repo.Delete(ctx, "7"))
	require.ErrorIs(t, repo.Delete(ctx, "7"), ErrNotFound)
	_, err = repo.Lookup(ctx, "7")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCachedRepositoryServesFromCacheAndEvicts(t *testing.T) {
	ctx := context.Background()
	repo, mr := newCachedRepository(t)

	_, err := repo.Upsert(ctx, Record{TelegramID: "7", Role: RoleUser, AddedBy: "1", AddedAt: time.Now()})
	require.NoError(t, err)

	_, err = repo.Lookup(ctx, "7")
	require.NoError(t, err)
	assert.True(t, mr.Exists(cachePrefix+"7"))

	require.NoError(t, repo.Delete(ctx, "7"))
	assert.False(t, mr.Exists(cachePrefix+"7"))

	_, err = repo.Lookup(ctx, "7")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(cachePrefix+"7"))
}

func TestCachedRepositoryFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	repo, mr := newCachedRepository(t)

	_, err := repo.Upsert(ctx, Record{TelegramID: "7", Role: RoleUser, AddedBy: "1", AddedAt: time.Now()})
	require.NoError(t, err)

	mr.Close()
	rec, err := repo.Lookup(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, rec.Role)
}

func TestNewCachedRepositoryWithoutRedisReturnsNext(t *testing.T) {
	next := NewMemoryRepository()
	assert.Same(t, next, NewCachedRepository(next, nil, time.Minute, logging.Discard()))
}
