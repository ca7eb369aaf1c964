package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type fakeUserRepo struct {
	byEmail        *models.User
	byEmailErr     error
	provisioned    *models.User
	profile        *models.Profile
	role           *models.RoleAssignment
	provisionErr   error
	lastLoginSet   bool
	lastLoginError error
}

func (f *fakeUserRepo) FindByEmail(context.Context, string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmail, nil
}

func (f *fakeUserRepo) FindByID(context.Context, string) (*models.User, error) {
	return f.byEmail, nil
}

func (f *fakeUserRepo) CreateWithProvisioning(_ context.Context, user *models.User, profile *models.Profile, role models.RoleAssignment) error {
	if f.provisionErr != nil {
		return f.provisionErr
	}
	f.provisioned = user
	f.profile = profile
	f.role = &role
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	f.lastLoginSet = true
	return f.lastLoginError
}

type fakeRoleRepo struct {
	roles []models.UserRole
	err   error
}

func (f *fakeRoleRepo) ListByUser(context.Context, string) ([]models.UserRole, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "attendance-api"}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "ani@example.com",
		PasswordHash: string(hash),
		FullName:     "Ani Wijaya",
		Active:       true,
	}
}

func TestSignupProvisionsProfileAndDefaultRole(t *testing.T) {
	users := &fakeUserRepo{}
	svc := NewAuthService(users, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ani@example.com",
		Password: "secret-password",
		FullName: "Ani Wijaya",
	})
	require.NoError(t, err)

	require.NotNil(t, users.provisioned)
	require.NotNil(t, users.profile)
	require.NotNil(t, users.role)
	assert.Equal(t, users.provisioned.ID, users.profile.UserID)
	assert.Equal(t, models.RoleUser, users.role.Role)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleUser, resp.User.Role)
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := &fakeUserRepo{provisionErr: appErrors.Clone(appErrors.ErrConflict, "email already registered")}
	svc := NewAuthService(users, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ani@example.com",
		Password: "secret-password",
		FullName: "Ani Wijaya",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSignupRejectsInvalidPayload(t *testing.T) {
	svc := NewAuthService(&fakeUserRepo{}, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Signup(context.Background(), models.SignupRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginIssuesTokenWithEffectiveRole(t *testing.T) {
	users := &fakeUserRepo{byEmail: activeUser(t, "secret-password")}
	roles := &fakeRoleRepo{roles: []models.UserRole{models.RoleUser, models.RoleAdmin}}
	svc := NewAuthService(users, roles, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ani@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	// admin dominates when multiple role rows exist
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.True(t, users.lastLoginSet)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginUnknownEmail(t *testing.T) {
	users := &fakeUserRepo{byEmailErr: sql.ErrNoRows}
	svc := NewAuthService(users, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	users := &fakeUserRepo{byEmail: activeUser(t, "secret-password")}
	svc := NewAuthService(users, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ani@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "secret-password")
	user.Active = false
	svc := NewAuthService(&fakeUserRepo{byEmail: user}, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ani@example.com",
		Password: "secret-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := NewAuthService(&fakeUserRepo{byEmail: activeUser(t, "secret-password")}, &fakeRoleRepo{}, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ani@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	other := NewAuthService(&fakeUserRepo{}, &fakeRoleRepo{}, nil, zap.NewNop(), AuthConfig{Secret: "different-secret", Expiration: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}
