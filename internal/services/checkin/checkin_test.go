package services

import (
	"context"
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

type MembersMock struct{ mock.Mock }

func (m *MembersMock) GetMember(ctx context.Context, uid string) (*models.Member, error) {
	args := m.Called(ctx, uid)
	member, _ := args.Get(0).(*models.Member)
	return member, args.Error(1)
}

func (m *MembersMock) GetMemberByQRCode(ctx context.Context, code string) (*models.Member, error) {
	args := m.Called(ctx, code)
	member, _ := args.Get(0).(*models.Member)
	return member, args.Error(1)
}

func (m *MembersMock) InsertAttendance(ctx context.Context, rec models.AttendanceRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

type SubsMock struct{ mock.Mock }

func (m *SubsMock) CurrentForMember(ctx context.Context, memberUID string) (*models.Subscription, error) {
	args := m.Called(ctx, memberUID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *SubsMock) LastForMember(ctx context.Context, memberUID string) (*models.Subscription, error) {
	args := m.Called(ctx, memberUID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *SubsMock) ConsumeOneClass(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	args := m.Called(ctx, sub)
	updated, _ := args.Get(0).(*models.Subscription)
	return updated, args.Error(1)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const (
	memberUUID = "b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d"
	staffUUID  = "d2b5c9e1-2a3f-4e8c-8d4b-6f7a8b9c0d1e"
)

func member(role string) *models.Member {
	return &models.Member{UID: memberUUID, Email: "m@atom.club", Role: role}
}

func scanAt(d int) time.Time {
	return time.Date(2024, time.June, d, 10, 0, 0, 0, time.UTC)
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantUID string
		wantOK  bool
	}{
		{name: "prefixed uuid", raw: "atom:" + memberUUID, wantUID: memberUUID, wantOK: true},
		{name: "bare uuid", raw: memberUUID, wantUID: memberUUID, wantOK: true},
		{name: "uppercase prefix", raw: "ATOM:" + memberUUID, wantUID: memberUUID, wantOK: true},
		{name: "surrounding spaces", raw: "  atom:" + memberUUID + "  ", wantUID: memberUUID, wantOK: true},
		{name: "empty", raw: "", wantOK: false},
		{name: "not a uuid", raw: "atom:hello", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, ok := parseCode(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantUID, uid)
			}
		})
	}
}

func TestCheckIn_TimePlan(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	end := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	active := &models.Subscription{
		ID:        "sub-1",
		MemberUID: memberUUID,
		PlanKind:  models.PlanMonthly,
		Status:    models.StatusActive,
		EndDate:   &end,
	}

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(active, nil).Once()
	members.On("InsertAttendance", mock.Anything, mock.MatchedBy(func(rec models.AttendanceRecord) bool {
		return rec.MemberUID == memberUUID &&
			rec.Source == models.AttendanceSourceKiosk &&
			rec.SubscriptionID != nil && *rec.SubscriptionID == "sub-1"
	})).Return("att-1", nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	result, err := svc.CheckIn(context.Background(), "atom:"+memberUUID, staffUUID, scanAt(10))

	require.NoError(t, err)
	assert.Equal(t, memberUUID, result.MemberUID)
	assert.False(t, result.StaffAccess)
	require.NotNil(t, result.EndDate)
	assert.Equal(t, end, *result.EndDate)
	members.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestCheckIn_StaffBypassesSubscription(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("coach"), nil).Once()
	members.On("InsertAttendance", mock.Anything, mock.MatchedBy(func(rec models.AttendanceRecord) bool {
		return rec.Source == models.AttendanceSourceKioskStaff && rec.SubscriptionID == nil
	})).Return("att-1", nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	result, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	require.NoError(t, err)
	assert.True(t, result.StaffAccess)
	subs.AssertNotCalled(t, "CurrentForMember", mock.Anything, mock.Anything)
	members.AssertExpectations(t)
}

func TestCheckIn_UnknownCode(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	members.On("GetMemberByQRCode", mock.Anything, "some-legacy-code").Return(nil, nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), "some-legacy-code", staffUUID, scanAt(10))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckIn_NoSubscriptionHistory(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(nil, nil).Once()
	subs.On("LastForMember", mock.Anything, memberUUID).Return(nil, nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	assert.ErrorIs(t, err, domain.ErrNoSubscription)
}

func TestCheckIn_LastSubscriptionTerminal(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(nil, nil).Once()
	subs.On("LastForMember", mock.Anything, memberUUID).
		Return(&models.Subscription{ID: "sub-1", Status: models.StatusCanceled}, nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
	assert.Contains(t, err.Error(), "canceled")
}

// Абонемент числится активным, но дата окончания уже позади:
// сканирование отклоняется независимо от того, отработал ли sweep.
func TestCheckIn_StaleActiveStatusRejected(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	end := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	stale := &models.Subscription{
		ID:        "sub-1",
		MemberUID: memberUUID,
		PlanKind:  models.PlanMonthly,
		Status:    models.StatusActive,
		EndDate:   &end,
	}

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(stale, nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(6))

	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
	members.AssertNotCalled(t, "InsertAttendance", mock.Anything, mock.Anything)
}

// Сканирование в последний день действия принимается.
func TestCheckIn_EndDateInclusive(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	end := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	active := &models.Subscription{
		ID:        "sub-1",
		MemberUID: memberUUID,
		PlanKind:  models.PlanMonthly,
		Status:    models.StatusActive,
		EndDate:   &end,
	}

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(active, nil).Once()
	members.On("InsertAttendance", mock.Anything, mock.Anything).Return("att-1", nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(5))

	assert.NoError(t, err)
}

func payPerClassSub(remaining int) *models.Subscription {
	r := remaining
	return &models.Subscription{
		ID:               "sub-1",
		MemberUID:        memberUUID,
		PlanKind:         models.PlanPayPerClass,
		Status:           models.StatusActive,
		RemainingClasses: &r,
	}
}

func TestCheckIn_PayPerClassConsumesOne(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	active := payPerClassSub(4)
	updated := payPerClassSub(3)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(active, nil).Once()
	subs.On("ConsumeOneClass", mock.Anything, active).Return(updated, nil).Once()
	members.On("InsertAttendance", mock.Anything, mock.Anything).Return("att-1", nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	result, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	require.NoError(t, err)
	require.NotNil(t, result.RemainingClasses)
	assert.Equal(t, 3, *result.RemainingClasses)
	subs.AssertExpectations(t)
}

func TestCheckIn_ZeroClassesRejected(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(payPerClassSub(0), nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
	subs.AssertNotCalled(t, "ConsumeOneClass", mock.Anything, mock.Anything)
}

func TestCheckIn_LostRaceRetriesOnce(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	first := payPerClassSub(2)
	reread := payPerClassSub(1)
	final := payPerClassSub(0)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(first, nil).Once()
	subs.On("ConsumeOneClass", mock.Anything, first).Return(nil, domain.ErrConflict).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(reread, nil).Once()
	subs.On("ConsumeOneClass", mock.Anything, reread).Return(final, nil).Once()
	members.On("InsertAttendance", mock.Anything, mock.Anything).Return("att-1", nil).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	result, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	require.NoError(t, err)
	assert.Equal(t, 0, *result.RemainingClasses)
	subs.AssertExpectations(t)
}

func TestCheckIn_SecondConflictRejects(t *testing.T) {
	members := new(MembersMock)
	subs := new(SubsMock)

	first := payPerClassSub(1)
	reread := payPerClassSub(1)

	members.On("GetMember", mock.Anything, memberUUID).Return(member("member"), nil).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(first, nil).Once()
	subs.On("ConsumeOneClass", mock.Anything, first).Return(nil, domain.ErrConflict).Once()
	subs.On("CurrentForMember", mock.Anything, memberUUID).Return(reread, nil).Once()
	subs.On("ConsumeOneClass", mock.Anything, reread).Return(nil, domain.ErrConflict).Once()

	svc := NewCheckInService(members, subs, NewNoopLogger())
	_, err := svc.CheckIn(context.Background(), memberUUID, staffUUID, scanAt(10))

	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
	members.AssertNotCalled(t, "InsertAttendance", mock.Anything, mock.Anything)
}
