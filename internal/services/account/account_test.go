package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/lib/jwt"
	"github.com/sharaf-deen/atom-membership/internal/lib/password"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) RegisterMember(ctx context.Context, member models.Member) (string, error) {
	args := m.Called(ctx, member)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) GetMember(ctx context.Context, uid string) (*models.Member, error) {
	args := m.Called(ctx, uid)
	res, _ := args.Get(0).(*models.Member)
	return res, args.Error(1)
}

func (m *RepoMock) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	args := m.Called(ctx, email)
	res, _ := args.Get(0).(*models.Member)
	return res, args.Error(1)
}

func (m *RepoMock) UpdateMemberRole(ctx context.Context, uid, role string) (int, error) {
	args := m.Called(ctx, uid, role)
	return args.Int(0), args.Error(1)
}

type MakerMock struct{ mock.Mock }

func (m *MakerMock) GenerateToken(userUID, email, role string) (string, error) {
	args := m.Called(userUID, email, role)
	return args.String(0), args.Error(1)
}

func (m *MakerMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	res, _ := args.Get(0).(*jwt.CustomClaims)
	return res, args.Error(1)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const memberUUID = "7c1d2e3f-4a5b-4c6d-8e9f-0a1b2c3d4e5f"

func memberWithPassword(t *testing.T, raw string) *models.Member {
	t.Helper()
	hash, err := password.GetHash(raw)
	require.NoError(t, err)
	return &models.Member{
		UID:          memberUUID,
		Email:        "ann@atom.club",
		PasswordHash: hash,
		Role:         "member",
	}
}

func TestLogin_Success(t *testing.T) {
	repo := new(RepoMock)
	maker := new(MakerMock)

	repo.On("GetMemberByEmail", mock.Anything, "ann@atom.club").
		Return(memberWithPassword(t, "correct-pass"), nil).Once()
	maker.On("GenerateToken", memberUUID, "ann@atom.club", "member").
		Return("signed-token", nil).Once()

	svc := NewAccountService(repo, maker, NewNoopLogger())
	token, err := svc.Login(context.Background(), "ann@atom.club", "correct-pass")

	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
}

// Неверные учётные данные — это 401, а не внутренняя ошибка сервера.
func TestLogin_WrongPassword(t *testing.T) {
	repo := new(RepoMock)
	maker := new(MakerMock)

	repo.On("GetMemberByEmail", mock.Anything, "ann@atom.club").
		Return(memberWithPassword(t, "correct-pass"), nil).Once()

	svc := NewAccountService(repo, maker, NewNoopLogger())
	_, err := svc.Login(context.Background(), "ann@atom.club", "wrong-pass")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
	assert.Equal(t, http.StatusUnauthorized, domain.HTTPStatus(err))
	maker.AssertNotCalled(t, "GenerateToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := new(RepoMock)

	repo.On("GetMemberByEmail", mock.Anything, "ghost@atom.club").Return(nil, nil).Once()

	svc := NewAccountService(repo, new(MakerMock), NewNoopLogger())
	_, err := svc.Login(context.Background(), "ghost@atom.club", "whatever")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
	assert.Equal(t, http.StatusUnauthorized, domain.HTTPStatus(err))
}

func TestRegister_DefaultsToMemberRole(t *testing.T) {
	repo := new(RepoMock)

	repo.On("RegisterMember", mock.Anything, mock.Anything).Return(memberUUID, nil).Once()

	svc := NewAccountService(repo, new(MakerMock), NewNoopLogger())
	uid, err := svc.Register(context.Background(), models.DummyRegister{
		Email:    "new@atom.club",
		Password: "long-enough-pass",
	})

	require.NoError(t, err)
	assert.Equal(t, memberUUID, uid)

	var saved models.Member
	for _, call := range repo.Calls {
		if call.Method == "RegisterMember" {
			saved = call.Arguments.Get(1).(models.Member)
		}
	}
	assert.Equal(t, "member", saved.Role)
	assert.NotEqual(t, "long-enough-pass", saved.PasswordHash)
	assert.NoError(t, password.CompareHash(saved.PasswordHash, "long-enough-pass"))
}

func TestRegister_UnknownRoleRejected(t *testing.T) {
	svc := NewAccountService(new(RepoMock), new(MakerMock), NewNoopLogger())

	_, err := svc.Register(context.Background(), models.DummyRegister{
		Email:    "new@atom.club",
		Password: "long-enough-pass",
		Role:     "janitor",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestChangeRole_AdminGrantNeedsSuperAdmin(t *testing.T) {
	repo := new(RepoMock)
	svc := NewAccountService(repo, new(MakerMock), NewNoopLogger())

	admin := &auth.Principal{UID: "admin-uid", Role: auth.RoleAdmin}
	err := svc.ChangeRole(context.Background(), admin, memberUUID, "admin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	repo.On("UpdateMemberRole", mock.Anything, memberUUID, "admin").Return(1, nil).Once()
	superAdmin := &auth.Principal{UID: "owner-uid", Role: auth.RoleSuperAdmin}
	assert.NoError(t, svc.ChangeRole(context.Background(), superAdmin, memberUUID, "admin"))
}
