package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"snapgram/internal/events"
	"snapgram/internal/media"
	"snapgram/internal/middleware"
	"snapgram/internal/models"
	"snapgram/internal/repository"
	"snapgram/internal/validation"
)

// MediaIntake stores validated uploads.
type MediaIntake interface {
	Accept(ctx context.Context, up media.Upload) (*media.StoredImage, error)
	Discard(ctx context.Context, img *media.StoredImage) error
	DiscardURL(ctx context.Context, imageURL, thumbnailURL string) error
	MaxBytes() int64
}

type PostService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	follows repository.FollowRepository
	media   MediaIntake
	events  events.Publisher
}

type CreatePostInput struct {
	AuthorID uint
	Caption  string
	// Image is nil when the request carried no file.
	Image *media.Upload
}

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	intake MediaIntake,
	publisher events.Publisher,
) *PostService {
	return &PostService{
		posts:   posts,
		users:   users,
		follows: follows,
		media:   intake,
		events:  publisher,
	}
}

// CreatePost validates the caption, stores the image and records the post.
// The stored image is discarded again if the post cannot be saved.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	caption := strings.TrimSpace(in.Caption)
	if err := validation.ValidateCaption(caption); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Image == nil {
		return nil, models.NewValidationError("Image is required")
	}
	if _, err := s.users.GetByID(ctx, in.AuthorID); err != nil {
		return nil, err
	}

	upload := *in.Image
	upload.OwnerID = in.AuthorID
	img, err := s.media.Accept(ctx, upload)
	if err != nil {
		return nil, s.mediaError(err)
	}

	post := &models.Post{
		UserID:       in.AuthorID,
		Caption:      caption,
		ImageURL:     img.URL,
		ThumbnailURL: img.ThumbnailURL,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		if discardErr := s.media.Discard(ctx, img); discardErr != nil {
			middleware.Logger.WarnContext(ctx, "failed to discard orphaned upload",
				slog.String("key", img.Key), slog.String("error", discardErr.Error()))
		}
		return nil, err
	}
	post.Likes = []models.PostLike{}
	post.Comments = []models.Comment{}

	events.Emit(ctx, s.events, events.Event{
		Type:    events.PostCreated,
		ActorID: in.AuthorID,
		PostID:  post.ID,
	})
	return post, nil
}

func (s *PostService) mediaError(err error) error {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return models.NewTooLargeError(fmt.Sprintf("File too large (max %dMB)", s.media.MaxBytes()>>20))
	case errors.Is(err, media.ErrUnsupportedType):
		return models.NewUnsupportedMediaError("Invalid file type. Only JPEG, PNG and JPG are allowed.")
	default:
		return models.NewInternalError(err)
	}
}

// Feed lists posts by userID and everyone userID follows, newest first.
func (s *PostService) Feed(ctx context.Context, userID uint, page repository.Page) ([]*models.Post, error) {
	following, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.posts.ListByAuthors(ctx, append(following, userID), page)
}

// GetUserPosts lists authorID's posts, newest first. Unknown authors yield an empty list.
func (s *PostService) GetUserPosts(ctx context.Context, authorID uint, page repository.Page) ([]*models.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID, page)
}

func (s *PostService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, postID)
}

// ToggleLike flips userID's like on the post and returns the updated post.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, error) {
	post, liked, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	typ := events.PostUnliked
	if liked {
		typ = events.PostLiked
	}
	events.Emit(ctx, s.events, events.Event{
		Type:        typ,
		ActorID:     userID,
		RecipientID: post.UserID,
		PostID:      post.ID,
	})
	return post, nil
}

// AddComment appends a trimmed comment and returns the updated post.
func (s *PostService) AddComment(ctx context.Context, postID, userID uint, text string) (*models.Post, error) {
	text = strings.TrimSpace(text)
	if err := validation.ValidateCommentText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{PostID: postID, UserID: userID, Text: text}
	post, err := s.posts.AddComment(ctx, comment)
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, events.Event{
		Type:        events.PostCommented,
		ActorID:     userID,
		RecipientID: post.UserID,
		PostID:      post.ID,
		CommentID:   comment.ID,
	})
	return post, nil
}

// DeletePost removes the post when userID owns it. Other users get the same
// not-found error as for a missing post.
func (s *PostService) DeletePost(ctx context.Context, postID, userID uint) error {
	deleted, err := s.posts.DeleteIfOwner(ctx, postID, userID)
	if err != nil {
		return err
	}

	if err := s.media.DiscardURL(ctx, deleted.ImageURL, deleted.ThumbnailURL); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove post image",
			slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
	}

	events.Emit(ctx, s.events, events.Event{
		Type:    events.PostDeleted,
		ActorID: userID,
		PostID:  postID,
	})
	return nil
}
