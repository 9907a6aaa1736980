package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if user, ok := m.usersByID[id]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	if session, ok := m.sessions[refreshToken]; ok {
		return session, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepository) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	return NewAuthService(repo, tokenManager), repo
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, repo := newAuthFixture()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "Freelancer@Example.com",
		Password: "Sup3rSecret",
		Role:     models.RoleFreelancer,
		Phone:    "0712345678",
	}, SessionMeta{UserAgent: "tests"})
	require.NoError(t, err)

	assert.Equal(t, "freelancer@example.com", result.User.Email)
	assert.Equal(t, "freelancer", result.User.Username)
	require.NotNil(t, result.User.Phone)
	assert.Equal(t, "254712345678", *result.User.Phone)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.Len(t, repo.sessions, 1)

	login, err := svc.Login(ctx, LoginInput{Email: "freelancer@example.com", Password: "Sup3rSecret"}, SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	in := RegisterInput{Email: "client@example.com", Password: "Sup3rSecret", Role: models.RoleClient}
	_, err := svc.Register(ctx, in, SessionMeta{})
	require.NoError(t, err)

	_, err = svc.Register(ctx, in, SessionMeta{})
	assert.True(t, apperror.IsConflict(err))
}

func TestAuthService_RegisterRejectsAdminRole(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "sneaky@example.com",
		Password: "Sup3rSecret",
		Role:     models.RoleAdmin,
	}, SessionMeta{})
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "client@example.com", Password: "Sup3rSecret"}, SessionMeta{})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "client@example.com", Password: "WrongPass1"}, SessionMeta{})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeUnauthorized))
}

func TestAuthService_RefreshRotatesSession(t *testing.T) {
	svc, repo := newAuthFixture()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "client@example.com", Password: "Sup3rSecret"}, SessionMeta{})
	require.NoError(t, err)

	oldToken := result.TokenPair.RefreshToken
	pair, err := svc.Refresh(ctx, oldToken, SessionMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, pair.RefreshToken)

	// Старая сессия удалена, повторная ротация невозможна.
	_, ok := repo.sessions[oldToken]
	assert.False(t, ok)
	_, err = svc.Refresh(ctx, oldToken, SessionMeta{})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeUnauthorized))
}

func TestTokenManager_AccessRoundtrip(t *testing.T) {
	manager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, _, err := manager.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := manager.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleClient, role)

	// Access токен не проходит как refresh.
	_, err = manager.ParseRefresh(pair.AccessToken)
	assert.Error(t, err)
}
