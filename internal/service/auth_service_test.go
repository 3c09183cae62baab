package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]models.User
	byEmail map[string]string
	deleted []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]models.User), byEmail: make(map[string]string)}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.byEmail[email]; ok {
		u := m.users[id]
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if _, exists := m.byEmail[user.Email]; exists {
		return repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	m.users[user.ID] = *user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.byEmail, u.Email)
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockProfileDeleter struct {
	deleted []string
}

func (m *mockProfileDeleter) DeleteByUserID(ctx context.Context, userID string) error {
	m.deleted = append(m.deleted, userID)
	return nil
}

func newAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, &mockProfileDeleter{}, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "lms-api",
	})
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleStudent, res.User.Role)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "other77"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceRegisterInvalidRole(t *testing.T) {
	svc := newAuthService(newMockUserRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1", Role: "Janitor"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUniformFailure(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	_, wrongErr := svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "wrong99"})
	require.Error(t, unknownErr)
	require.Error(t, wrongErr)

	unknownApp := appErrors.FromError(unknownErr)
	wrongApp := appErrors.FromError(wrongErr)
	assert.Equal(t, unknownApp.Code, wrongApp.Code)
	assert.Equal(t, unknownApp.Message, wrongApp.Message)
	assert.Equal(t, unknownApp.Status, wrongApp.Status)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1", Role: "Instructor"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestAuthServiceValidateTokenFailuresAreUniform(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	otherSvc := NewAuthService(repo, &mockProfileDeleter{}, validator.New(), zap.NewNop(), AuthConfig{
		Secret: "different-secret", Expiration: time.Hour,
	})

	expiredSvc := NewAuthService(repo, &mockProfileDeleter{}, validator.New(), zap.NewNop(), AuthConfig{
		Secret: "test-secret", Expiration: time.Hour,
	})
	expiredSvc.config.Expiration = -time.Minute
	expiredRes, err := expiredSvc.Register(context.Background(), models.RegisterRequest{Email: "b@example.com", Password: "secret1"})
	require.NoError(t, err)

	cases := map[string]string{
		"malformed": "not.a.token",
		"tampered":  res.Token + "x",
		"badSecret": res.Token,
		"expired":   expiredRes.Token,
	}
	for name, token := range cases {
		target := svc
		if name == "badSecret" {
			target = otherSvc
		}
		_, err := target.ValidateToken(token)
		require.Error(t, err, name)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code, name)
		assert.Equal(t, appErrors.ErrUnauthorized.Message, appErr.Message, name)
	}
}

func TestAuthServiceAuthenticateDeletedUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	claims, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	require.NoError(t, svc.DeleteAccount(context.Background(), res.User.ID))

	_, err = svc.Authenticate(context.Background(), res.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceDeleteAccountCascadesProfile(t *testing.T) {
	repo := newMockUserRepo()
	profiles := &mockProfileDeleter{}
	svc := NewAuthService(repo, profiles, validator.New(), zap.NewNop(), AuthConfig{Secret: "test-secret"})

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), res.User.ID))
	assert.Contains(t, repo.deleted, res.User.ID)
	assert.Contains(t, profiles.deleted, res.User.ID)
}

func TestAuthServiceDeleteAccountMissingUser(t *testing.T) {
	svc := newAuthService(newMockUserRepo())

	err := svc.DeleteAccount(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuthServicePasswordIsHashed(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	stored := repo.users[res.User.ID]
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}
