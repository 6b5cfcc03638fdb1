// Package services содержит валидатор чек-ина киоска: разбор QR-кода,
// проверку действительности абонемента на момент сканирования, списание
// занятия и запись посещения.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/lib/dates"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// qrPrefix префикс содержимого QR-кода клубной карты.
const qrPrefix = "atom:"

// MemberRepository методы поиска учётных записей для чек-ина.
type MemberRepository interface {
	GetMember(ctx context.Context, uid string) (*models.Member, error)
	GetMemberByQRCode(ctx context.Context, code string) (*models.Member, error)
	InsertAttendance(ctx context.Context, rec models.AttendanceRecord) (string, error)
}

// SubscriptionSource состояние абонементов, единственный источник истины.
type SubscriptionSource interface {
	CurrentForMember(ctx context.Context, memberUID string) (*models.Subscription, error)
	LastForMember(ctx context.Context, memberUID string) (*models.Subscription, error)
	ConsumeOneClass(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
}

// CheckInService проверяет сканирование и записывает посещение.
type CheckInService struct {
	members MemberRepository
	subs    SubscriptionSource
	log     *slog.Logger
}

// NewCheckInService создает новый экземпляр CheckInService.
func NewCheckInService(members MemberRepository, subs SubscriptionSource, log *slog.Logger) *CheckInService {
	return &CheckInService{
		members: members,
		subs:    subs,
		log:     log,
	}
}

// parseCode извлекает UID члена клуба из содержимого QR-кода.
// Принимаются только 'atom:<uuid>' и голый uuid.
func parseCode(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", false
	}
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, qrPrefix) {
		t = t[len(qrPrefix):]
	}
	id, err := uuid.Parse(t)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// CheckIn валидирует сканирование и записывает ровно одно посещение.
//
// Действительность абонемента выводится заново на момент сканирования:
// истёкшая дата окончания отклоняется, даже если пакетное истечение
// ещё не запускалось сегодня. Списание занятия атомарно относительно
// конкурентных сканирований: при проигрыше условного обновления чтение
// повторяется один раз, вторая неудача отдаёт SUBSCRIPTION_NOT_ACTIVE.
func (s *CheckInService) CheckIn(ctx context.Context, rawCode, scannedBy string, scanTime time.Time) (*models.CheckInResult, error) {
	memberUID, ok := parseCode(rawCode)
	var member *models.Member
	var err error
	if ok {
		member, err = s.members.GetMember(ctx, memberUID)
	} else {
		// Нестандартное содержимое: возможно, произвольный QR-код из базы.
		member, err = s.members.GetMemberByQRCode(ctx, strings.TrimSpace(rawCode))
	}
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.WithDetail(domain.ErrInvalidInput, "unknown QR code")
	}

	// Персонал проходит всегда, абонемент не списывается.
	if auth.Staff.Contains(auth.Role(member.Role)) {
		rec := models.AttendanceRecord{
			MemberUID:  member.UID,
			AttendedAt: scanTime,
			Source:     models.AttendanceSourceKioskStaff,
			ScannedBy:  scannedBy,
		}
		if _, err := s.members.InsertAttendance(ctx, rec); err != nil {
			return nil, err
		}
		s.log.Info("staff check-in accepted", slog.String("member_uid", member.UID))
		return &models.CheckInResult{MemberUID: member.UID, StaffAccess: true}, nil
	}

	sub, err := s.subs.CurrentForMember(ctx, member.UID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		last, err := s.subs.LastForMember(ctx, member.UID)
		if err != nil {
			return nil, err
		}
		if last == nil {
			return nil, domain.ErrNoSubscription
		}
		return nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "subscription is "+string(last.Status))
	}

	// Защита в глубину: не доверять статусу, пока sweep мог не отработать.
	if sub.EndDate != nil && dates.DateOnly(scanTime).After(dates.DateOnly(*sub.EndDate)) {
		return nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "subscription is expired")
	}
	if sub.PlanKind == models.PlanPayPerClass && (sub.RemainingClasses == nil || *sub.RemainingClasses <= 0) {
		return nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "subscription is expired")
	}

	if sub.PlanKind == models.PlanPayPerClass {
		sub, err = s.consumeWithRetry(ctx, member.UID, sub)
		if err != nil {
			return nil, err
		}
	}

	subID := sub.ID
	rec := models.AttendanceRecord{
		MemberUID:      member.UID,
		SubscriptionID: &subID,
		AttendedAt:     scanTime,
		Source:         models.AttendanceSourceKiosk,
		ScannedBy:      scannedBy,
	}
	if _, err := s.members.InsertAttendance(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("check-in accepted", slog.String("member_uid", member.UID),
		slog.String("subscription_id", sub.ID))

	return &models.CheckInResult{
		MemberUID:        member.UID,
		SubscriptionID:   &subID,
		RemainingClasses: sub.RemainingClasses,
		EndDate:          sub.EndDate,
	}, nil
}

// consumeWithRetry списывает занятие, повторяя чтение не более одного раза
// после проигрыша условного обновления.
func (s *CheckInService) consumeWithRetry(ctx context.Context, memberUID string, sub *models.Subscription) (*models.Subscription, error) {
	updated, err := s.subs.ConsumeOneClass(ctx, sub)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}

	reread, err := s.subs.CurrentForMember(ctx, memberUID)
	if err != nil {
		return nil, err
	}
	if reread == nil || reread.PlanKind != models.PlanPayPerClass ||
		reread.RemainingClasses == nil || *reread.RemainingClasses <= 0 {
		return nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "no classes remaining")
	}
	updated, err = s.subs.ConsumeOneClass(ctx, reread)
	if errors.Is(err, domain.ErrConflict) {
		return nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "no classes remaining")
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
