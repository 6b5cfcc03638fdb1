package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

type MemberRepoMock struct{ mock.Mock }

func (m *MemberRepoMock) SearchMembers(ctx context.Context, email, query string, limit int) ([]*models.Member, error) {
	args := m.Called(ctx, email, query, limit)
	res, _ := args.Get(0).([]*models.Member)
	return res, args.Error(1)
}

func (m *MemberRepoMock) GetMember(ctx context.Context, uid string) (*models.Member, error) {
	args := m.Called(ctx, uid)
	res, _ := args.Get(0).(*models.Member)
	return res, args.Error(1)
}

func (m *MemberRepoMock) ListSubscriptions(ctx context.Context, memberUID string, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, memberUID, limit, offset)
	res, _ := args.Get(0).([]*models.Subscription)
	return res, args.Error(1)
}

func (m *MemberRepoMock) CountAttendanceForMember(ctx context.Context, memberUID string) (int, error) {
	args := m.Called(ctx, memberUID)
	return args.Int(0), args.Error(1)
}

type SubsSourceMock struct{ mock.Mock }

func (m *SubsSourceMock) LastForMember(ctx context.Context, memberUID string) (*models.Subscription, error) {
	args := m.Called(ctx, memberUID)
	res, _ := args.Get(0).(*models.Subscription)
	return res, args.Error(1)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const memberUUID = "3f2a8b1c-5d6e-4f70-8a91-b2c3d4e5f607"

func testMember() *models.Member {
	return &models.Member{
		UID:          memberUUID,
		Email:        "ann@atom.club",
		PasswordHash: "secret-hash",
		FirstName:    "Ann",
		LastName:     "Petrova",
		Role:         "member",
	}
}

func TestMemberSearch_EmptyFilterRejected(t *testing.T) {
	svc := NewMemberService(new(MemberRepoMock), new(SubsSourceMock), NewNoopLogger())

	_, err := svc.Search(context.Background(), models.DummyMemberSearch{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMemberSearch_ProfilesCarryLastSubscription(t *testing.T) {
	repo := new(MemberRepoMock)
	subs := new(SubsSourceMock)

	last := &models.Subscription{ID: "sub-1", MemberUID: memberUUID, Status: models.StatusActive}
	repo.On("SearchMembers", mock.Anything, "", "ann", searchLimit).
		Return([]*models.Member{testMember()}, nil).Once()
	subs.On("LastForMember", mock.Anything, memberUUID).Return(last, nil).Once()

	svc := NewMemberService(repo, subs, NewNoopLogger())
	profiles, err := svc.Search(context.Background(), models.DummyMemberSearch{Query: "ann"})

	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "sub-1", profiles[0].LastSubscription.ID)
	// Хэш пароля наружу не отдаётся.
	assert.Empty(t, profiles[0].Member.PasswordHash)
}

func TestMemberProfile_CardAssembled(t *testing.T) {
	repo := new(MemberRepoMock)

	end := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)
	history := []*models.Subscription{
		{ID: "sub-2", MemberUID: memberUUID, Status: models.StatusActive, EndDate: &end},
		{ID: "sub-1", MemberUID: memberUUID, Status: models.StatusExpired},
	}
	repo.On("GetMember", mock.Anything, memberUUID).Return(testMember(), nil).Once()
	repo.On("ListSubscriptions", mock.Anything, memberUUID, historyLimit, 0).Return(history, nil).Once()
	repo.On("CountAttendanceForMember", mock.Anything, memberUUID).Return(42, nil).Once()

	svc := NewMemberService(repo, new(SubsSourceMock), NewNoopLogger())
	card, err := svc.Profile(context.Background(), memberUUID)

	require.NoError(t, err)
	assert.Equal(t, memberUUID, card.Member.UID)
	assert.Len(t, card.Subscriptions, 2)
	assert.Equal(t, 42, card.Visits)
	assert.Empty(t, card.Member.PasswordHash)
}

func TestMemberProfile_UnknownMember(t *testing.T) {
	repo := new(MemberRepoMock)
	repo.On("GetMember", mock.Anything, memberUUID).Return(nil, nil).Once()

	svc := NewMemberService(repo, new(SubsSourceMock), NewNoopLogger())
	_, err := svc.Profile(context.Background(), memberUUID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingMember))
}
