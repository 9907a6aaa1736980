package service

import (
	"context"
	"time"

	"github.com/kaziflow/backend/internal/goroutine"
	"github.com/kaziflow/backend/internal/logger"
)

// ExpirableRepository помечает неуспешными платежи, зависшие в ожидании.
type ExpirableRepository interface {
	ExpireStale(ctx context.Context, ttl time.Duration) (int64, error)
}

// SessionCleaner удаляет истёкшие refresh-сессии.
type SessionCleaner interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// ExpiryWorker периодически закрывает платежи, по которым колбэк так и не
// пришёл, и подчищает истёкшие сессии. Без него pending-платёж навсегда
// блокировал бы повторную оплату.
type ExpiryWorker struct {
	deposits ExpirableRepository
	bidFees  ExpirableRepository
	sessions SessionCleaner
	ttl      time.Duration
	interval time.Duration
}

// NewExpiryWorker создаёт воркер. interval по умолчанию — десятая часть ttl,
// но не чаще раза в минуту.
func NewExpiryWorker(deposits, bidFees ExpirableRepository, sessions SessionCleaner, ttl time.Duration) *ExpiryWorker {
	interval := ttl / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	return &ExpiryWorker{
		deposits: deposits,
		bidFees:  bidFees,
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
	}
}

// Start запускает воркер в фоне до отмены контекста.
func (w *ExpiryWorker) Start(ctx context.Context) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	})
}

// RunOnce выполняет один проход по зависшим платежам.
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	if n, err := w.deposits.ExpireStale(ctx, w.ttl); err != nil {
		logger.Log.WithField("error", err.Error()).Error("expiry worker: не удалось закрыть зависшие депозиты")
	} else if n > 0 {
		logger.Log.WithField("count", n).Info("expiry worker: зависшие депозиты помечены неуспешными")
	}

	if n, err := w.bidFees.ExpireStale(ctx, w.ttl); err != nil {
		logger.Log.WithField("error", err.Error()).Error("expiry worker: не удалось закрыть зависшие комиссии")
	} else if n > 0 {
		logger.Log.WithField("count", n).Info("expiry worker: зависшие комиссии помечены неуспешными")
	}

	if _, err := w.sessions.DeleteExpiredSessions(ctx, time.Now()); err != nil {
		logger.Log.WithField("error", err.Error()).Error("expiry worker: не удалось удалить истёкшие сессии")
	}
}
