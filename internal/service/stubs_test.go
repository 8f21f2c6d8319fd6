package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"snapgram/internal/events"
	"snapgram/internal/media"
	"snapgram/internal/models"
	"snapgram/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is an in-memory repository.UserRepository.
type userRepoStub struct {
	users     map[uint]*models.User
	createErr error
	updated   []*models.User
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	s := &userRepoStub{users: map[uint]*models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userRepoStub) Create(_ context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uint(len(s.users) + 1)
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	cp := *u
	return &cp, nil
}

func (s *userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *userRepoStub) GetSummaries(_ context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	out := map[uint]models.UserSummary{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (s *userRepoStub) Update(_ context.Context, user *models.User) error {
	s.updated = append(s.updated, user)
	s.users[user.ID] = user
	return nil
}

// followRepoStub is an in-memory repository.FollowRepository.
type followRepoStub struct {
	edges map[[2]uint]bool
	err   error
}

func newFollowRepoStub() *followRepoStub {
	return &followRepoStub{edges: map[[2]uint]bool{}}
}

func (s *followRepoStub) Follow(_ context.Context, follower, followee uint) error {
	if s.err != nil {
		return s.err
	}
	s.edges[[2]uint{follower, followee}] = true
	return nil
}

func (s *followRepoStub) Unfollow(_ context.Context, follower, followee uint) error {
	delete(s.edges, [2]uint{follower, followee})
	return nil
}

func (s *followRepoStub) FollowingIDs(_ context.Context, userID uint) ([]uint, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := []uint{}
	for e := range s.edges {
		if e[0] == userID {
			ids = append(ids, e[1])
		}
	}
	return ids, nil
}

func (s *followRepoStub) FollowerIDs(_ context.Context, userID uint) ([]uint, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := []uint{}
	for e := range s.edges {
		if e[1] == userID {
			ids = append(ids, e[0])
		}
	}
	return ids, nil
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	listByAuthorFn  func(context.Context, uint, repository.Page) ([]*models.Post, error)
	listByAuthorsFn func(context.Context, []uint, repository.Page) ([]*models.Post, error)
	toggleLikeFn    func(context.Context, uint, uint) (*models.Post, bool, error)
	addCommentFn    func(context.Context, *models.Comment) (*models.Post, error)
	deleteIfOwnerFn func(context.Context, uint, uint) (*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint, page repository.Page) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, page)
}
func (s *postRepoStub) ListByAuthors(ctx context.Context, ids []uint, page repository.Page) ([]*models.Post, error) {
	return s.listByAuthorsFn(ctx, ids, page)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, bool, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) AddComment(ctx context.Context, c *models.Comment) (*models.Post, error) {
	return s.addCommentFn(ctx, c)
}
func (s *postRepoStub) DeleteIfOwner(ctx context.Context, postID, ownerID uint) (*models.Post, error) {
	return s.deleteIfOwnerFn(ctx, postID, ownerID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		getByIDFn:       func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listByAuthorFn:  func(_ context.Context, _ uint, _ repository.Page) ([]*models.Post, error) { return nil, nil },
		listByAuthorsFn: func(_ context.Context, _ []uint, _ repository.Page) ([]*models.Post, error) { return nil, nil },
		toggleLikeFn: func(_ context.Context, id, _ uint) (*models.Post, bool, error) {
			return &models.Post{ID: id}, true, nil
		},
		addCommentFn: func(_ context.Context, c *models.Comment) (*models.Post, error) {
			return &models.Post{ID: c.PostID}, nil
		},
		deleteIfOwnerFn: func(_ context.Context, id, owner uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: owner}, nil
		},
	}
}

// intakeStub records media calls.
type intakeStub struct {
	acceptErr  error
	accepted   []media.Upload
	discarded  []*media.StoredImage
	discardURL []string
}

func (s *intakeStub) Accept(_ context.Context, up media.Upload) (*media.StoredImage, error) {
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	s.accepted = append(s.accepted, up)
	return &media.StoredImage{Key: "k.jpg", URL: "http://test/uploads/k.jpg", ContentType: "image/jpeg"}, nil
}

func (s *intakeStub) Discard(_ context.Context, img *media.StoredImage) error {
	s.discarded = append(s.discarded, img)
	return nil
}

func (s *intakeStub) DiscardURL(_ context.Context, imageURL, _ string) error {
	s.discardURL = append(s.discardURL, imageURL)
	return nil
}

func (s *intakeStub) MaxBytes() int64 { return 5 << 20 }

// recordingPublisher captures emitted events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type tokenStub struct{ err error }

func (t tokenStub) Issue(userID uint) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return fmt.Sprintf("token-%d", userID), nil
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}
