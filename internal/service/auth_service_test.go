package service

import (
	"context"
	"errors"
	"testing"

	"snapgram/internal/auth"
	"snapgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register(t *testing.T) {
	users := newUserRepoStub()
	svc := NewAuthService(users, newFollowRepoStub(), tokenStub{})

	sess, err := svc.Register(context.Background(), RegisterInput{
		Username: "  alice ",
		Email:    " Alice@Example.COM ",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "token-1", sess.Token)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.NotEqual(t, "secret1", sess.User.Password)
	assert.Equal(t, []uint{}, sess.User.Followers)

	ok, err := auth.CheckPassword(users.users[1].Password, "secret1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(newUserRepoStub(), newFollowRepoStub(), tokenStub{})

	tests := []struct {
		name    string
		in      RegisterInput
		message string
	}{
		{"short username", RegisterInput{"ab", "a@example.com", "secret1"}, "username must be at least 3 characters long"},
		{"bad email", RegisterInput{"alice", "nope", "secret1"}, "invalid email format"},
		{"short password", RegisterInput{"alice", "a@example.com", "12345"}, "password must be at least 6 characters long"},
		{"first violation wins", RegisterInput{"", "nope", ""}, "username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assertValidationError(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestAuthService_RegisterPassesThroughConflict(t *testing.T) {
	users := newUserRepoStub()
	users.createErr = models.NewConflictError("Username already taken")
	svc := NewAuthService(users, newFollowRepoStub(), tokenStub{})

	_, err := svc.Register(context.Background(), RegisterInput{"alice", "a@example.com", "secret1"})
	assertAppError(t, err, models.CodeConflict)
	assert.Equal(t, "Username already taken", err.Error())
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)

	users := newUserRepoStub(&models.User{ID: 1, Username: "alice", Email: "alice@example.com", Password: hash})
	follows := newFollowRepoStub()
	follows.edges[[2]uint{1, 2}] = true
	svc := NewAuthService(users, follows, tokenStub{})
	ctx := context.Background()

	sess, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", sess.Token)
	assert.Equal(t, []uint{2}, sess.User.Following)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assertAppError(t, err, models.CodeUnauthorized)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assertAppError(t, err, models.CodeUnauthorized)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = svc.Login(ctx, "", "secret1")
	assertValidationError(t, err)
}

func TestAuthService_LoginTokenFailure(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	users := newUserRepoStub(&models.User{ID: 1, Username: "alice", Email: "alice@example.com", Password: hash})
	svc := NewAuthService(users, newFollowRepoStub(), tokenStub{err: errors.New("boom")})

	_, err = svc.Login(context.Background(), "alice@example.com", "secret1")
	assertAppError(t, err, models.CodeInternal)
}

func TestAuthService_Me(t *testing.T) {
	users := newUserRepoStub(&models.User{ID: 1, Username: "alice"}, &models.User{ID: 2, Username: "bob"})
	follows := newFollowRepoStub()
	follows.edges[[2]uint{2, 1}] = true
	svc := NewAuthService(users, follows, tokenStub{})

	me, err := svc.Me(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, me.Followers)
	assert.Empty(t, me.Following)

	_, err = svc.Me(context.Background(), 9)
	assertAppError(t, err, models.CodeNotFound)
}
