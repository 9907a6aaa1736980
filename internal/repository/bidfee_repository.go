package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/repository/common"
)

var (
	// ErrBidFeeNotFound возвращается, когда платёж комиссии не найден.
	ErrBidFeeNotFound = errors.New("bid fee payment not found")
	// ErrBidFeePending возвращается при попытке начать второй платёж,
	// пока первый по той же задаче ещё не завершён.
	ErrBidFeePending = errors.New("bid fee payment already pending")
)

// BidFeeRepository отвечает за работу с таблицей bid_fee_payments.
type BidFeeRepository struct {
	db *sqlx.DB
}

// NewBidFeeRepository создаёт экземпляр репозитория.
func NewBidFeeRepository(db *sqlx.DB) *BidFeeRepository {
	return &BidFeeRepository{db: db}
}

// Create создаёт платёж комиссии в статусе pending. Частичный уникальный
// индекс по (user_id, task_id) WHERE status = 'pending' не даёт открыть
// два незавершённых платежа по одной задаче.
func (r *BidFeeRepository) Create(ctx context.Context, payment *models.BidFeePayment) error {
	query := `
		INSERT INTO bid_fee_payments (user_id, task_id, amount, phone_number, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		payment.UserID, payment.TaskID, payment.Amount, payment.PhoneNumber,
	).Scan(&payment.ID, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrBidFeePending
		}
		return fmt.Errorf("bid fee repository: create %w", err)
	}

	return nil
}

// SetCheckoutRequestID сохраняет идентификатор STK push после инициации.
func (r *BidFeeRepository) SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bid_fee_payments SET checkout_request_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, checkoutRequestID)
	if err != nil {
		return fmt.Errorf("bid fee repository: set checkout request id %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bid fee repository: set checkout request id rows affected %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrStaleState
	}

	return nil
}

// GetByID возвращает платёж по идентификатору.
func (r *BidFeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BidFeePayment, error) {
	return common.GetByID[models.BidFeePayment](ctx, r.db, "bid_fee_payments", id, ErrBidFeeNotFound)
}

// GetByCheckoutRequestID возвращает платёж по идентификатору STK push.
func (r *BidFeeRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.BidFeePayment, error) {
	return common.GetByField[models.BidFeePayment](ctx, r.db, "bid_fee_payments", "checkout_request_id", checkoutRequestID, ErrBidFeeNotFound)
}

// Complete идемпотентно завершает платёж по checkout_request_id и сохраняет
// квитанцию. Повторная доставка колбэка возвращает уже завершённый платёж.
func (r *BidFeeRepository) Complete(ctx context.Context, checkoutRequestID, receipt string) (*models.BidFeePayment, error) {
	var payment models.BidFeePayment

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &payment, `
			SELECT * FROM bid_fee_payments WHERE checkout_request_id = $1 FOR UPDATE
		`, checkoutRequestID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBidFeeNotFound
			}
			return fmt.Errorf("bid fee repository: complete lock %w", err)
		}

		if payment.Status == models.BidFeeStatusCompleted {
			return nil
		}

		if err := tx.GetContext(ctx, &payment, `
			UPDATE bid_fee_payments SET status = 'completed', receipt = $2, updated_at = NOW()
			WHERE checkout_request_id = $1
			RETURNING *
		`, checkoutRequestID, receipt); err != nil {
			return fmt.Errorf("bid fee repository: complete update %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// Fail помечает платёж неуспешным по checkout_request_id.
func (r *BidFeeRepository) Fail(ctx context.Context, checkoutRequestID string) (*models.BidFeePayment, error) {
	var payment models.BidFeePayment
	err := r.db.GetContext(ctx, &payment, `
		UPDATE bid_fee_payments SET status = 'failed', updated_at = NOW()
		WHERE checkout_request_id = $1 AND status = 'pending'
		RETURNING *
	`, checkoutRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidFeeNotFound
		}
		return nil, fmt.Errorf("bid fee repository: fail %w", err)
	}

	return &payment, nil
}

// HasCompleted сообщает, оплатил ли пользователь комиссию по задаче.
func (r *BidFeeRepository) HasCompleted(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM bid_fee_payments
			WHERE user_id = $1 AND task_id = $2 AND status = 'completed'
		)
	`, userID, taskID)
	if err != nil {
		return false, fmt.Errorf("bid fee repository: has completed %w", err)
	}

	return exists, nil
}

// ListByUser возвращает платежи пользователя.
func (r *BidFeeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BidFeePayment, error) {
	var payments []models.BidFeePayment
	query := `SELECT * FROM bid_fee_payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &payments, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("bid fee repository: list by user %w", err)
	}

	return payments, nil
}

// ExpireStale помечает неуспешными платежи, ожидающие подтверждения дольше ttl.
func (r *BidFeeRepository) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bid_fee_payments SET status = 'failed', updated_at = NOW()
		WHERE status = 'pending' AND updated_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("bid fee repository: expire stale %w", err)
	}
	return result.RowsAffected()
}
