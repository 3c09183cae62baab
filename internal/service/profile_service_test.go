package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type mockProfileRepo struct {
	profiles map[string]models.Profile
	updates  int
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]models.Profile)}
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	if p, ok := m.profiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	if _, ok := m.profiles[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	if profile.ID == "" {
		profile.ID = "profile-" + profile.UserID
	}
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *mockProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	if _, ok := m.profiles[profile.UserID]; !ok {
		return sql.ErrNoRows
	}
	m.profiles[profile.UserID] = *profile
	m.updates++
	return nil
}

func (m *mockProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, ok := m.profiles[userID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.profiles, userID)
	return nil
}

func TestProfileServiceGetMissing(t *testing.T) {
	svc := NewProfileService(newMockProfileRepo(), validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "u1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestProfileServiceCreateThenConflict(t *testing.T) {
	repo := newMockProfileRepo()
	svc := NewProfileService(repo, validator.New(), zap.NewNop())

	profile, err := svc.Create(context.Background(), "u1", CreateProfileRequest{FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, "Ada", profile.FirstName)

	_, err = svc.Create(context.Background(), "u1", CreateProfileRequest{FirstName: "Ada"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestProfileServiceUpdateMergesFields(t *testing.T) {
	repo := newMockProfileRepo()
	svc := NewProfileService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "u1", CreateProfileRequest{FirstName: "Ada", Bio: "maths"})
	require.NoError(t, err)

	bio := "teaches Go"
	profile, err := svc.Update(context.Background(), "u1", UpdateProfileRequest{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "teaches Go", profile.Bio)
	assert.Equal(t, 1, repo.updates)
}

func TestProfileServiceUpdateMissing(t *testing.T) {
	svc := NewProfileService(newMockProfileRepo(), validator.New(), zap.NewNop())

	first := "Ada"
	_, err := svc.Update(context.Background(), "u1", UpdateProfileRequest{FirstName: &first})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProfileServiceDelete(t *testing.T) {
	repo := newMockProfileRepo()
	svc := NewProfileService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "u1", CreateProfileRequest{FirstName: "Ada"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "u1"))

	err = svc.Delete(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
