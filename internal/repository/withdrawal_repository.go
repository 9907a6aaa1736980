package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/repository/common"
)

// ErrWithdrawalNotFound возвращается, когда заявка на вывод не найдена.
var ErrWithdrawalNotFound = errors.New("withdrawal not found")

// WithdrawalRepository отвечает за работу с таблицей withdrawals.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository создаёт экземпляр репозитория.
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create создаёт заявку на вывод и оптимистично списывает сумму с доступного
// баланса в одной транзакции. Если внешняя выплата не пройдёт, средства
// вернёт компенсирующее зачисление в MarkFailed.
func (r *WithdrawalRepository) Create(ctx context.Context, userID uuid.UUID, amount float64, method, destination string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var available float64
		err := tx.GetContext(ctx, &available, `
			SELECT available_balance FROM wallets WHERE user_id = $1 FOR UPDATE
		`, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("withdrawal repository: create lock wallet %w", err)
		}
		if available < amount {
			return ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE wallets SET available_balance = available_balance - $2, updated_at = NOW()
			WHERE user_id = $1
		`, userID, amount); err != nil {
			return fmt.Errorf("withdrawal repository: create debit %w", err)
		}

		if err := tx.GetContext(ctx, &withdrawal, `
			INSERT INTO withdrawals (user_id, amount, method, destination, status)
			VALUES ($1, $2, $3, $4, 'requested')
			RETURNING *
		`, userID, amount, method, destination); err != nil {
			return fmt.Errorf("withdrawal repository: create insert %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// GetByID возвращает заявку по идентификатору.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetByID[models.Withdrawal](ctx, r.db, "withdrawals", id, ErrWithdrawalNotFound)
}

// ListByUser возвращает заявки пользователя.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	query := `SELECT * FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &withdrawals, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by user %w", err)
	}

	return withdrawals, nil
}

// ListByStatus возвращает заявки в указанном статусе (для админки).
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	query := `SELECT * FROM withdrawals WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &withdrawals, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by status %w", err)
	}

	return withdrawals, nil
}

// UpdateStatus переводит заявку в новый статус при условии текущего.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.GetContext(ctx, &withdrawal, `
		UPDATE withdrawals SET status = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrStaleState
		}
		return nil, fmt.Errorf("withdrawal repository: update status %w", err)
	}

	return &withdrawal, nil
}

// MarkFailed помечает заявку неуспешной и компенсирующим зачислением
// возвращает сумму на доступный баланс. Обе операции в одной транзакции.
func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &withdrawal, `
			SELECT * FROM withdrawals WHERE id = $1 FOR UPDATE
		`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("withdrawal repository: mark failed lock %w", err)
		}

		if withdrawal.Status == models.WithdrawalStatusFailed {
			return nil
		}
		if withdrawal.Status == models.WithdrawalStatusCompleted {
			return common.ErrStaleState
		}

		if err := tx.GetContext(ctx, &withdrawal, `
			UPDATE withdrawals SET status = 'failed', processed_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id); err != nil {
			return fmt.Errorf("withdrawal repository: mark failed update %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE wallets SET available_balance = available_balance + $2, updated_at = NOW()
			WHERE user_id = $1
		`, withdrawal.UserID, withdrawal.Amount); err != nil {
			return fmt.Errorf("withdrawal repository: mark failed compensate %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}
