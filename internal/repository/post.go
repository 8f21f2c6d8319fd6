package repository

import (
	"context"
	"errors"
	"time"

	"snapgram/internal/models"
	"snapgram/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, page Page) ([]*models.Post, error)
	ListByAuthors(ctx context.Context, authorIDs []uint, page Page) ([]*models.Post, error)
	ToggleLike(ctx context.Context, postID, userID uint) (post *models.Post, liked bool, err error)
	AddComment(ctx context.Context, comment *models.Comment) (*models.Post, error)
	DeleteIfOwner(ctx context.Context, postID, ownerID uint) (*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withInteractions preloads likes and comments in insertion order.
func withInteractions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Likes", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		if foreignKeyViolation(err) {
			return models.NewNotFoundError("User", post.UserID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return r.load(r.db.WithContext(ctx), id)
}

func (r *postRepository) load(db *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post
	if err := withInteractions(db).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// ListByAuthor returns authorID's posts, newest first.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, page Page) ([]*models.Post, error) {
	return r.ListByAuthors(ctx, []uint{authorID}, page)
}

// ListByAuthors returns posts by any of authorIDs, newest first, each once.
func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, page Page) (posts []*models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "ListByAuthors", "posts")
	defer func() { observability.EndSpan(span, err) }()

	authorIDs = dedupeIDs(authorIDs)
	posts = []*models.Post{}
	if len(authorIDs) == 0 {
		return posts, nil
	}

	q := withInteractions(r.db.WithContext(ctx)).
		Where("user_id IN ?", authorIDs).
		Order("created_at DESC").
		Order("id DESC")
	if err := page.apply(q).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ToggleLike flips userID's membership in the post's like set. The post row is
// locked for the duration of the transaction so concurrent toggles on the same
// post serialize; the unique index on (post_id, user_id) backs this up.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (post *models.Post, liked bool, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "ToggleLike", "post_likes")
	defer func() { observability.EndSpan(span, err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&locked, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", postID)
			}
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			like := models.PostLike{PostID: postID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
			liked = true
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		post, err = r.load(tx, postID)
		return err
	})
	if err != nil {
		return nil, false, asAppError(err)
	}

	action := "unlike"
	if liked {
		action = "like"
	}
	observability.LikeToggles.WithLabelValues(action).Inc()
	return post, liked, nil
}

// AddComment appends comment to its post and returns the updated post.
func (r *postRepository) AddComment(ctx context.Context, comment *models.Comment) (post *models.Post, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Post", comment.PostID)
		}

		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		post, err = r.load(tx, comment.PostID)
		return err
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return post, nil
}

// DeleteIfOwner removes the post with its likes and comments only when ownerID
// authored it. A missing post and a foreign post yield the same error.
func (r *postRepository) DeleteIfOwner(ctx context.Context, postID, ownerID uint) (deleted *models.Post, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", postID, ownerID).
			First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundOrUnauthorizedError("Post")
			}
			return err
		}

		if err := tx.Where("post_id = ?", postID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", postID, ownerID).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundOrUnauthorizedError("Post")
		}

		deleted = &post
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return deleted, nil
}

// asAppError passes AppErrors through and wraps anything else as internal.
func asAppError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
