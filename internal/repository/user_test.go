package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"snapgram/internal/cache"
	"snapgram/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedUser *models.User
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "testuser", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Username: "testuser", Email: "test@example.com"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 5,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WithArgs(5, 1).
					WillReturnError(errors.New("connection reset"))
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.IsCode(err, tt.expectedCode), "got %v", err)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateClassifiesPostgresUniqueViolation(t *testing.T) {
	tests := []struct {
		constraint string
		message    string
	}{
		{"idx_users_username", "Username already taken"},
		{"idx_users_email", "Email already registered"},
		{"users_pkey", "User already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewUserRepository(db, nil)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})
			mock.ExpectRollback()

			err := repo.Create(context.Background(), &models.User{Username: "a", Email: "a@example.com", Password: "x"})
			require.Error(t, err)

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeConflict, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicatesSQLite(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", Email: "alice@example.com", Password: "h"}))

	err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "h"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Contains(t, err.Error(), "Username")

	err = repo.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", Password: "h"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Contains(t, err.Error(), "Email")
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	created := createUser(t, db, "bob")

	u, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, created.ID, u.ID)
	assert.Equal(t, models.DefaultAvatarURL, u.Avatar)

	u, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_GetSummariesReadsThroughCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db := newTestDB(t)
	repo := NewUserRepository(db, cache.New(rdb))
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	got, err := repo.GetSummaries(ctx, []uint{alice.ID, bob.ID, alice.ID, 999})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "alice", got[alice.ID].Username)
	assert.Equal(t, "bob", got[bob.ID].Username)
	_, ok := got[999]
	assert.False(t, ok)
	assert.True(t, mr.Exists(cache.UserSummaryKey(alice.ID)))

	// Served from cache even after the row changes underneath.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", alice.ID).Update("username", "renamed").Error)
	got, err = repo.GetSummaries(ctx, []uint{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, "alice", got[alice.ID].Username)

	alice.Bio = "hello"
	alice.Avatar = "https://example.com/a.png"
	require.NoError(t, repo.Update(ctx, alice))
	assert.False(t, mr.Exists(cache.UserSummaryKey(alice.ID)))

	got, err = repo.GetSummaries(ctx, []uint{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got[alice.ID].Username)
	assert.Equal(t, "https://example.com/a.png", got[alice.ID].Avatar)
}

func TestUserRepository_GetSummariesWithoutCache(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db, nil)

	u := createUser(t, db, "carol")
	got, err := repo.GetSummaries(context.Background(), []uint{u.ID})
	require.NoError(t, err)
	assert.Equal(t, u.Summary(), got[u.ID])

	got, err = repo.GetSummaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUserRepository_GetByIDReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db := newTestDB(t)
	repo := NewUserRepository(db, cache.New(rdb))
	ctx := context.Background()

	alice := createUser(t, db, "alice")

	u, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, mr.Exists(cache.UserProfileKey(alice.ID)))
	cached, err := mr.Get(cache.UserProfileKey(alice.ID))
	require.NoError(t, err)
	assert.NotContains(t, cached, `"password"`)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", alice.ID).Update("bio", "stale").Error)
	u, err = repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Bio)

	alice.Bio = "fresh"
	require.NoError(t, repo.Update(ctx, alice))
	assert.False(t, mr.Exists(cache.UserProfileKey(alice.ID)))

	u, err = repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", u.Bio)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)
	assert.False(t, mr.Exists(cache.UserProfileKey(999)))
}
