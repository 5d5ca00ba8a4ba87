package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/readshelf/internal/domain"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

func newTestUserService(users *mockUserRepository, tokens *mockRefreshTokenRepository) *UserService {
	return NewUserService(users, tokens, newTestJWTManager(), nil, newTestLogger())
}

func TestRegister_Success(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockRefreshTokenRepository)
	svc := newTestUserService(users, tokens)
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	user, pair, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "SecurePass123",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "SecurePass123", user.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	users.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc := newTestUserService(new(mockUserRepository), new(mockRefreshTokenRepository))

	for _, password := range []string{"short", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		_, _, err := svc.Register(context.Background(), RegisterInput{
			Name:     "Ada",
			Email:    "ada@example.com",
			Password: password,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "password %q", password)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockRefreshTokenRepository)
	svc := newTestUserService(users, tokens)
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "ada@example.com"))

	_, _, err := svc.Register(ctx, RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "SecurePass123",
	})

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestLogin_Success(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockRefreshTokenRepository)
	svc := newTestUserService(users, tokens)
	ctx := context.Background()

	users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: hashForTest(t, "SecurePass123"),
	}, nil)
	tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	user, pair, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "SecurePass123"})

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockRefreshTokenRepository))
	ctx := context.Background()

	users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: hashForTest(t, "SecurePass123"),
	}, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "WrongPass456"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UnknownEmail(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockRefreshTokenRepository))
	ctx := context.Background()

	users.On("GetByEmail", ctx, "nobody@example.com").
		Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	_, _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever1A"})

	// Unknown email and wrong password are indistinguishable to the caller.
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefreshToken_RotatesStoredToken(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockRefreshTokenRepository)
	svc := newTestUserService(users, tokens)
	ctx := context.Background()

	jwtManager := newTestJWTManager()
	refreshToken, err := jwtManager.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	tokens.On("GetByHash", ctx, hashToken(refreshToken)).Return(&domain.RefreshToken{
		ID:        "tok-1",
		UserID:    "user-1",
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}, nil)
	tokens.On("Revoke", ctx, "tok-1").Return(nil)
	users.On("GetByID", ctx, "user-1").Return(&domain.User{ID: "user-1", Email: "ada@example.com"}, nil)
	tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	pair, err := svc.RefreshToken(ctx, refreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	tokens.AssertCalled(t, "Revoke", ctx, "tok-1")
}

func TestRefreshToken_RevokedToken(t *testing.T) {
	users := new(mockUserRepository)
	tokens := new(mockRefreshTokenRepository)
	svc := newTestUserService(users, tokens)
	ctx := context.Background()

	jwtManager := newTestJWTManager()
	refreshToken, err := jwtManager.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	revokedAt := time.Now().UTC().Add(-time.Minute)
	tokens.On("GetByHash", ctx, hashToken(refreshToken)).Return(&domain.RefreshToken{
		ID:        "tok-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		RevokedAt: &revokedAt,
	}, nil)

	_, err = svc.RefreshToken(ctx, refreshToken)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefreshToken_Garbage(t *testing.T) {
	svc := newTestUserService(new(mockUserRepository), new(mockRefreshTokenRepository))

	_, err := svc.RefreshToken(context.Background(), "not-a-jwt")

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
