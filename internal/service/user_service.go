package service

import (
	"context"
	"strings"

	"snapgram/internal/events"
	"snapgram/internal/models"
	"snapgram/internal/repository"
	"snapgram/internal/validation"
)

type UserService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	events  events.Publisher
}

// UpdateProfileInput carries optional profile fields; nil leaves a field unchanged.
type UpdateProfileInput struct {
	UserID uint
	Bio    *string
	Avatar *string
}

func NewUserService(users repository.UserRepository, follows repository.FollowRepository, publisher events.Publisher) *UserService {
	return &UserService{users: users, follows: follows, events: publisher}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := attachFollows(ctx, s.follows, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := validation.ValidateBio(bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = bio
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar == "" {
			avatar = models.DefaultAvatarURL
		} else if err := validation.ValidateAvatarURL(avatar); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Avatar = avatar
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := attachFollows(ctx, s.follows, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Follow adds followerID to targetID's followers and returns the target.
func (s *UserService) Follow(ctx context.Context, followerID, targetID uint) (*models.User, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if err := s.follows.Follow(ctx, followerID, targetID); err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, events.Event{
		Type:        events.UserFollowed,
		ActorID:     followerID,
		RecipientID: targetID,
	})
	return s.GetUserByID(ctx, targetID)
}

// Unfollow removes the edge if present and returns the target.
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID uint) (*models.User, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if err := s.follows.Unfollow(ctx, followerID, targetID); err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, targetID)
}

func attachFollows(ctx context.Context, follows repository.FollowRepository, user *models.User) error {
	followers, err := follows.FollowerIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	following, err := follows.FollowingIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Followers = followers
	user.Following = following
	return nil
}
