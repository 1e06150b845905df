package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/repository"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, models.User) {
	t.Helper()
	users := repository.NewUserMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:           "staff-1",
		Name:         "Dewi",
		Email:        "dewi@city.gov",
		PasswordHash: string(hash),
		Role:         models.RoleStaff,
		Department:   strPtr(DepartmentWater),
	}
	require.NoError(t, users.Create(context.Background(), &user))

	svc := NewAuthService(users, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "civic-issue-api",
	})
	return svc, user
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, user := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "DEWI@city.gov", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, DepartmentWater, *resp.User.Department)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
	assert.Equal(t, "civic-issue-api", claims.Issuer)

	actor := ActorFromClaims(claims)
	assert.Equal(t, Actor{ID: user.ID, Name: "Dewi", Role: models.RoleStaff}, actor)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dewi@city.gov", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@city.gov", Password: "password123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, user := newAuthFixture(t)

	_, err := svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	other := NewAuthService(nil, nil, nil, AuthConfig{AccessTokenSecret: "other-secret"})
	resp, err := other.IssueToken(&user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.IssueToken(&user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestMe(t *testing.T) {
	svc, user := newAuthFixture(t)

	info, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "dewi@city.gov", info.Email)

	_, err = svc.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
