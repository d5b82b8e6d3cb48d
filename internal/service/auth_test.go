package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brybell/backend/internal/dto"
	"github.com/brybell/backend/internal/model"
)

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ExistsByEmailOrPhone(_ context.Context, email, phone string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email || u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	u, ok := m.users[user.ID]
	if !ok {
		return nil
	}
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	u.Phone = user.Phone
	return nil
}

func newTestAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, "test-secret", 15*time.Minute, 7*24*time.Hour)
}

func registerRequest() dto.RegisterRequest {
	return dto.RegisterRequest{
		Email:     "jo@example.com",
		Phone:     "+15550001111",
		Password:  "correct-horse",
		FirstName: "Jo",
		LastName:  "Bell",
	}
}

func TestAuthService_Register(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "customer", resp.User.Role)
	assert.Len(t, repo.users, 1)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	// Same email, different phone.
	req := registerRequest()
	req.Phone = "+15550002222"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	// Same phone, different email.
	req = registerRequest()
	req.Email = "other@example.com"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	assert.Len(t, repo.users, 1)
}

func TestAuthService_Login(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{
		Email:    "jo@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestAuthService_Login_BadCredentials(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "jo@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_VerifyAccessToken_Expired(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", -time.Minute, 7*24*time.Hour)

	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_VerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)

	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_VerifyAccessToken_WrongSecret(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	other := NewAuthService(repo, "other-secret", 15*time.Minute, 7*24*time.Hour)
	_, err = other.VerifyAccessToken(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	// Access tokens are not accepted as refresh tokens.
	_, err = svc.Refresh(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Refresh_UserGone(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	delete(repo.users, resp.User.ID)

	_, err = svc.Refresh(context.Background(), resp.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	resp, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	first := "Joanna"
	updated, err := svc.UpdateProfile(context.Background(), resp.User.ID, dto.UpdateProfileRequest{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Joanna", updated.FirstName)
	assert.Equal(t, "Bell", updated.LastName)
	assert.Equal(t, "+15550001111", updated.Phone)
}

func TestAuthService_GetProfile_NotFound(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo())
	_, err := svc.GetProfile(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_RequestPasswordReset_UniformOutcome(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "jo@example.com"))
	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
}
