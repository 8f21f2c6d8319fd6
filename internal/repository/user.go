// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"snapgram/internal/cache"
	"snapgram/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a new UserRepository implementation. c may be nil.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	if c == nil {
		c = cache.New(nil)
	}
	return &userRepository{db: db, cache: c}
}

// Create inserts user and relies on the unique indexes to reject duplicates atomically.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if detail, ok := uniqueViolation(err); ok {
			return duplicateUserError(detail)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func duplicateUserError(detail string) *models.AppError {
	switch {
	case strings.Contains(detail, "username"):
		return models.NewConflictError("Username already taken")
	case strings.Contains(detail, "email"):
		return models.NewConflictError("Email already registered")
	default:
		return models.NewConflictError("User already exists")
	}
}

// GetByID reads through the profile cache. The password hash is not cached,
// so credential checks must go through GetByEmail.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.cache.Aside(ctx, cache.UserProfileKey(id), &user, cache.UserProfileTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has that email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetSummaries resolves handle and avatar for ids, reading through the cache.
// Unknown ids are absent from the result.
func (r *userRepository) GetSummaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	ids = dedupeIDs(ids)
	out := make(map[uint]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.UserSummaryKey(id)
	}

	// A cache failure only means every id is fetched from the database.
	misses, _ := r.cache.MGetJSON(ctx, keys, func(i int, raw []byte) error {
		var s models.UserSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		out[ids[i]] = s
		return nil
	})
	if len(misses) == 0 {
		return out, nil
	}

	missing := make([]uint, len(misses))
	for i, idx := range misses {
		missing[i] = ids[idx]
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Select("id", "username", "avatar").
		Where("id IN ?", missing).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	for i := range users {
		s := users[i].Summary()
		out[s.ID] = s
		_ = r.cache.SetJSON(ctx, cache.UserSummaryKey(s.ID), s, cache.UserSummaryTTL)
	}
	return out, nil
}

// Update persists profile fields and drops the cached profile and summary.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).
		Model(user).
		Updates(map[string]any{"bio": user.Bio, "avatar": user.Avatar}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	_ = r.cache.Invalidate(ctx, cache.UserProfileKey(user.ID), cache.UserSummaryKey(user.ID))
	return nil
}
