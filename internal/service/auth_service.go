// Package service holds the application's use cases, between the HTTP layer and the stores.
package service

import (
	"context"
	"strings"

	"snapgram/internal/auth"
	"snapgram/internal/models"
	"snapgram/internal/repository"
	"snapgram/internal/validation"
)

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

type AuthService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	tokens  TokenIssuer
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Session is a freshly issued token with the user it belongs to.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, follows repository.FollowRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, follows: follows, tokens: tokens}
}

// Register creates an account and signs the new user in. Duplicate handles
// and emails are rejected by the store's unique indexes.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	reg := validation.Registration{
		Username: strings.TrimSpace(in.Username),
		Email:    validation.NormalizeEmail(in.Email),
		Password: in.Password,
	}
	if err := validation.ValidateRegistration(reg); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: reg.Username,
		Email:    reg.Email,
		Password: hashed,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	user.Followers = []uint{}
	user.Following = []uint{}

	return s.session(user)
}

// Login reports every credential mismatch with the same error so callers
// cannot tell unknown emails from wrong passwords.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateLogin(email, password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	ok, err := auth.CheckPassword(user.Password, password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	if err := attachFollows(ctx, s.follows, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

// Me returns the authenticated user with their follow sets.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := attachFollows(ctx, s.follows, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, User: user}, nil
}
