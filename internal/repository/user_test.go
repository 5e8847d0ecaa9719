package repository

import (
	"context"
	"net"
	"regexp"
	"testing"

	"indiverse/internal/cache"
	"indiverse/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb), mr
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	c, mr := newTestCache(t)
	repo := NewUserRepository(db, c)
	ctx := context.Background()

	user := &models.User{Username: "asha", Email: "asha@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", got.Username)
	assert.Empty(t, got.Password, "hash never leaves GetByID")
	assert.True(t, mr.Exists(cache.UserKey(user.ID)))

	byEmail, err := repo.GetByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "hash", byEmail.Password)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserRepository_DuplicateEmailConflicts(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, cache.New(nil))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "one", Email: "dup@example.com", Password: "h"}))
	err := repo.Create(ctx, &models.User{Username: "two", Email: "dup@example.com", Password: "h"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestUserRepository_DeletedUsersDropOutOfBatchLookup(t *testing.T) {
	db := newTestDB(t)
	c, mr := newTestCache(t)
	repo := NewUserRepository(db, c)
	ctx := context.Background()

	kept := &models.User{Username: "kept", Email: "kept@example.com", Password: "h"}
	gone := &models.User{Username: "gone", Email: "gone@example.com", Password: "h"}
	require.NoError(t, repo.Create(ctx, kept))
	require.NoError(t, repo.Create(ctx, gone))

	_, err := repo.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, gone.ID))
	assert.False(t, mr.Exists(cache.UserKey(gone.ID)), "delete evicts the cached user")

	users, err := repo.GetByIDs(ctx, []uint{kept.ID, gone.ID, 4242})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "kept", users[0].Username)
	assert.Empty(t, users[0].Email, "batch lookup selects id and username only")

	err = repo.Delete(ctx, gone.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	empty, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUserRepository_UnreachableStoreIsUnavailable(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, cache.New(nil))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: assert.AnError})

	_, err := repo.GetByID(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByIDsQueryShape(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, cache.New(nil))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","username" FROM "users" WHERE id IN`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(1, "a").AddRow(2, "b"))

	users, err := repo.GetByIDs(context.Background(), []uint{1, 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
