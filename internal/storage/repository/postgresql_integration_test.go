package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharaf-deen/atom-membership/internal/models"
)

func TestStorage_CreateAndReadSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "anna@example.com", "Anna", "Petrova", "member")

	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	sub := models.Subscription{
		MemberUID: memberUID,
		PlanKind:  models.PlanMonthly,
		Status:    models.StatusActive,
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &end,
	}

	id, err := storage.CreateSubscription(context.Background(), sub)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := storage.ReadSubscription(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PlanMonthly, got.PlanKind)
	assert.Equal(t, models.StatusActive, got.Status)
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(end))
	assert.Nil(t, got.RemainingClasses)
}

func TestStorage_ReadSubscription_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	got, err := storage.ReadSubscription(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_FindActiveSubscription_IgnoresExhaustedPack(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "ivan@example.com", "Ivan", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	factory.CreateSessionPack(t, memberUID, "active", start, 0)

	got, err := storage.FindActiveSubscription(context.Background(), memberUID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_ConsumeClass(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "ivan@example.com", "Ivan", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	id := factory.CreateSessionPack(t, memberUID, "active", start, 2)

	// Первое списание: остаток 1, статус active.
	sub, ok, err := storage.ConsumeClass(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, sub.RemainingClasses)
	assert.Equal(t, 1, *sub.RemainingClasses)
	assert.Equal(t, models.StatusActive, sub.Status)

	// Второе списание: остаток 0, статус переключается в expired.
	sub, ok, err = storage.ConsumeClass(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, *sub.RemainingClasses)
	assert.Equal(t, models.StatusExpired, sub.Status)

	// Третье списание не проходит условие.
	_, ok, err = storage.ConsumeClass(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Два одновременных списания последнего занятия: ровно одно проходит,
// второе проигрывает условное обновление.
func TestStorage_ConsumeClass_ConcurrentLastClass(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "race@example.com", "Ivan", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	id := factory.CreateSessionPack(t, memberUID, "active", start, 1)

	type outcome struct {
		sub *models.Subscription
		ok  bool
		err error
	}
	results := make(chan outcome, 2)
	startGate := make(chan struct{})

	for range 2 {
		go func() {
			<-startGate
			sub, ok, err := storage.ConsumeClass(context.Background(), id)
			results <- outcome{sub: sub, ok: ok, err: err}
		}()
	}
	close(startGate)

	succeeded := 0
	for range 2 {
		res := <-results
		require.NoError(t, res.err)
		if res.ok {
			succeeded++
			require.NotNil(t, res.sub.RemainingClasses)
			assert.Equal(t, 0, *res.sub.RemainingClasses)
			assert.Equal(t, models.StatusExpired, res.sub.Status)
		}
	}
	assert.Equal(t, 1, succeeded)

	final, err := storage.ReadSubscription(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, *final.RemainingClasses)
	assert.Equal(t, models.StatusExpired, final.Status)
}

func TestStorage_ExpireTimeBounded_Idempotent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid1 := factory.CreateMember(t, "a@example.com", "A", "", "member")
	uid2 := factory.CreateMember(t, "b@example.com", "B", "", "member")
	uid3 := factory.CreateMember(t, "c@example.com", "C", "", "member")

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	// Истекла вчера, истекает сегодня, истекает завтра.
	factory.CreateTimeSubscription(t, uid1, "monthly", "active", start, today.AddDate(0, 0, -1))
	factory.CreateTimeSubscription(t, uid2, "monthly", "active", start, today)
	factory.CreateTimeSubscription(t, uid3, "monthly", "active", start, today.AddDate(0, 0, 1))

	count, err := storage.ExpireTimeBounded(context.Background(), today)
	require.NoError(t, err)
	// Последний день действия включительно: сегодняшняя дата ещё действует.
	assert.Equal(t, 1, count)

	count, err = storage.ExpireTimeBounded(context.Background(), today)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_ExpireExhausted(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid1 := factory.CreateMember(t, "a@example.com", "A", "", "member")
	uid2 := factory.CreateMember(t, "b@example.com", "B", "", "member")

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	factory.CreateSessionPack(t, uid1, "active", start, 0)
	factory.CreateSessionPack(t, uid2, "active", start, 3)

	count, err := storage.ExpireExhausted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = storage.ExpireExhausted(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_CancelSubscription_OnlyActive(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "a@example.com", "A", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	id := factory.CreateTimeSubscription(t, memberUID, "monthly", "active", start, start.AddDate(0, 1, 0))

	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	count, err := storage.CancelSubscription(context.Background(), id, at)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Повторная отмена не находит активной строки.
	count, err = storage.CancelSubscription(context.Background(), id, at)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := storage.ReadSubscription(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
	assert.NotNil(t, got.CanceledAt)
}

func TestStorage_GetMemberByQRCode_GeneratedColumn(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "a@example.com", "A", "", "member")

	got, err := storage.GetMemberByQRCode(context.Background(), "atom:"+memberUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, memberUID, got.UID)

	missing, err := storage.GetMemberByQRCode(context.Background(), "atom:nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_SearchMembers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateMember(t, "anna@example.com", "Anna", "Petrova", "member")
	factory.CreateMember(t, "ann.other@example.com", "Annette", "Kim", "member")
	factory.CreateMember(t, "boris@example.com", "Boris", "Ivanov", "member")

	byEmail, err := storage.SearchMembers(context.Background(), "anna@example.com", "", 20)
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "Anna", byEmail[0].FirstName)

	byName, err := storage.SearchMembers(context.Background(), "", "ann", 20)
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}

func TestStorage_InsertTicketIfAbsent_Dedupe(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "a@example.com", "A", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	subID := factory.CreateTimeSubscription(t, memberUID, "monthly", "active", start, start.AddDate(0, 1, 0))

	ticket := models.NotificationTicket{
		MemberUID:      memberUID,
		SubscriptionID: subID,
		Kind:           models.TicketKindExpire7d,
		DedupeKey:      "expire_7d:" + subID + ":2024-07-01",
		Email:          "a@example.com",
		Subject:        "subject",
		Body:           "body",
	}

	created, err := storage.InsertTicketIfAbsent(context.Background(), ticket)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = storage.InsertTicketIfAbsent(context.Background(), ticket)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := storage.TicketExists(context.Background(), ticket.DedupeKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStorage_MarkTicketSent_OnlyFromQueued(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	memberUID := factory.CreateMember(t, "a@example.com", "A", "", "member")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	subID := factory.CreateTimeSubscription(t, memberUID, "monthly", "active", start, start.AddDate(0, 1, 0))

	ticket := models.NotificationTicket{
		MemberUID:      memberUID,
		SubscriptionID: subID,
		Kind:           models.TicketKindSessionsLow,
		DedupeKey:      "sessions_low:" + subID + ":1",
		Email:          "a@example.com",
		Subject:        "subject",
		Body:           "body",
	}
	_, err := storage.InsertTicketIfAbsent(context.Background(), ticket)
	require.NoError(t, err)

	stored, err := storage.GetTicketByDedupeKey(context.Background(), ticket.DedupeKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TicketQueued, stored.Status)

	sentAt := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, storage.MarkTicketSent(context.Background(), stored.ID, sentAt))

	stored, err = storage.GetTicketByDedupeKey(context.Background(), ticket.DedupeKey)
	require.NoError(t, err)
	assert.Equal(t, models.TicketSent, stored.Status)
	require.NotNil(t, stored.SentAt)
}

func TestStorage_FindCandidates(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid1 := factory.CreateMember(t, "a@example.com", "A", "", "member")
	uid2 := factory.CreateMember(t, "b@example.com", "B", "", "member")
	uid3 := factory.CreateMember(t, "c@example.com", "C", "", "member")

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	target := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)

	// Ровно через 7 дней, позже недели, пакет с низким остатком.
	factory.CreateTimeSubscription(t, uid1, "monthly", "active", start, target)
	factory.CreateTimeSubscription(t, uid2, "monthly", "active", start, target.AddDate(0, 0, 5))
	factory.CreateSessionPack(t, uid3, "active", start, 1)

	expiring, err := storage.FindTimeBoundedExpiringOn(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, uid1, expiring[0].MemberUID)
	assert.Equal(t, "a@example.com", expiring[0].Email)

	low, err := storage.FindSessionPacksBelow(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, uid3, low[0].MemberUID)
	require.NotNil(t, low[0].RemainingClasses)
	assert.Equal(t, 1, *low[0].RemainingClasses)
}
