// Package services содержит поиск членов клуба для стойки регистрации.
package services

import (
	"context"
	"log/slog"

	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// searchLimit максимум результатов одного поиска.
const searchLimit = 20

// historyLimit максимум абонементов в карточке профиля.
const historyLimit = 50

// MemberRepository методы чтения учётных записей и их истории.
type MemberRepository interface {
	SearchMembers(ctx context.Context, email, query string, limit int) ([]*models.Member, error)
	GetMember(ctx context.Context, uid string) (*models.Member, error)
	ListSubscriptions(ctx context.Context, memberUID string, limit, offset int) ([]*models.Subscription, error)
	CountAttendanceForMember(ctx context.Context, memberUID string) (int, error)
}

// SubscriptionSource последний абонемент члена клуба для карточки профиля.
type SubscriptionSource interface {
	LastForMember(ctx context.Context, memberUID string) (*models.Subscription, error)
}

// MemberService реализует поиск профилей с последним абонементом.
type MemberService struct {
	repo MemberRepository
	subs SubscriptionSource
	log  *slog.Logger
}

// NewMemberService создает новый экземпляр MemberService.
func NewMemberService(repo MemberRepository, subs SubscriptionSource, log *slog.Logger) *MemberService {
	return &MemberService{
		repo: repo,
		subs: subs,
		log:  log,
	}
}

// Search ищет членов клуба по почте или подстроке имени и дополняет
// каждый профиль последним абонементом. Пустой фильтр отклоняется.
func (s *MemberService) Search(ctx context.Context, req models.DummyMemberSearch) ([]*models.MemberProfile, error) {
	if req.Email == "" && req.Query == "" {
		return nil, domain.WithDetail(domain.ErrInvalidInput, "email or query is required")
	}

	members, err := s.repo.SearchMembers(ctx, req.Email, req.Query, searchLimit)
	if err != nil {
		return nil, err
	}

	result := make([]*models.MemberProfile, 0, len(members))
	for _, m := range members {
		last, err := s.subs.LastForMember(ctx, m.UID)
		if err != nil {
			return nil, err
		}
		// Хэш пароля наружу не отдаётся.
		m.PasswordHash = ""
		result = append(result, &models.MemberProfile{
			Member:           m,
			LastSubscription: last,
		})
	}
	s.log.Info("member search finished", slog.Int("count", len(result)))
	return result, nil
}

// Profile возвращает карточку одного члена клуба: учётную запись,
// историю абонементов и число посещений.
func (s *MemberService) Profile(ctx context.Context, memberUID string) (*models.MemberCard, error) {
	m, err := s.repo.GetMember(ctx, memberUID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.WithDetail(domain.ErrMissingMember, "member not found")
	}

	subs, err := s.repo.ListSubscriptions(ctx, memberUID, historyLimit, 0)
	if err != nil {
		return nil, err
	}
	visits, err := s.repo.CountAttendanceForMember(ctx, memberUID)
	if err != nil {
		return nil, err
	}

	m.PasswordHash = ""
	return &models.MemberCard{
		Member:        m,
		Subscriptions: subs,
		Visits:        visits,
	}, nil
}
