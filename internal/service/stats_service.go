package service

import (
	"context"
	"time"

	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// StatsLedger — агрегаты по платежам для статистики платформы.
type StatsLedger interface {
	SumPlatformFees(ctx context.Context) (float64, error)
	SumHeld(ctx context.Context) (float64, error)
}

// StatsTasks — агрегаты по задачам.
type StatsTasks interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// PlatformStats — сводка по платформе для админского дашборда.
type PlatformStats struct {
	TasksByStatus    map[string]int `json:"tasks_by_status"`
	HeldInEscrow     float64        `json:"held_in_escrow"`
	PlatformFeesPaid float64        `json:"platform_fees_paid"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// StatsService считает сводку по платформе с кэшированием.
type StatsService struct {
	ledger StatsLedger
	tasks  StatsTasks
	cache  *CacheService
	ttl    time.Duration
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(ledger StatsLedger, tasks StatsTasks, cache *CacheService, ttl time.Duration) *StatsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsService{
		ledger: ledger,
		tasks:  tasks,
		cache:  cache,
		ttl:    ttl,
	}
}

// PlatformStats возвращает сводку. Агрегаты тяжёлые, результат кэшируется.
func (s *StatsService) PlatformStats(ctx context.Context, actor Actor) (*PlatformStats, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	value, err := s.cache.GetOrSet("stats:platform", s.ttl, func() (interface{}, error) {
		byStatus, err := s.tasks.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}

		held, err := s.ledger.SumHeld(ctx)
		if err != nil {
			return nil, err
		}

		fees, err := s.ledger.SumPlatformFees(ctx)
		if err != nil {
			return nil, err
		}

		return &PlatformStats{
			TasksByStatus:    byStatus,
			HeldInEscrow:     held,
			PlatformFeesPaid: fees,
			GeneratedAt:      time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*PlatformStats), nil
}

// Invalidate сбрасывает кэш статистики.
func (s *StatsService) Invalidate() {
	s.cache.InvalidateByPrefix("stats:")
}
