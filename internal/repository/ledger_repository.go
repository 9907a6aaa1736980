package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/money"
	"github.com/kaziflow/backend/internal/repository/common"
)

var (
	// ErrInsufficientFunds возвращается при нехватке средств на кошельке.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoHeldFunds возвращается, когда по задаче нет удержанных средств.
	ErrNoHeldFunds = errors.New("no held funds for task")
	// ErrTransactionNotFound возвращается, когда транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// LedgerRepository отвечает за кошельки и escrow-транзакции.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository создаёт экземпляр репозитория.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetWallet возвращает кошелёк пользователя, создаёт если не существует.
func (r *LedgerRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id, available_balance, pending_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &wallet, query, userID); err != nil {
		return nil, fmt.Errorf("ledger repository: get wallet %w", err)
	}

	return &wallet, nil
}

// Hold идемпотентно создаёт escrow-транзакцию по задаче в статусе held.
// Уникальный индекс по task_id гарантирует одну транзакцию на задачу;
// повторный вызов возвращает уже существующую запись.
func (r *LedgerRepository) Hold(ctx context.Context, taskID, payerID uuid.UUID, amount float64, method string) (*models.Transaction, error) {
	var transaction models.Transaction
	query := `
		INSERT INTO transactions (task_id, payer_id, amount, platform_fee, payment_method, escrow_status)
		VALUES ($1, $2, $3, 0, $4, 'held')
		ON CONFLICT (task_id) DO UPDATE SET task_id = EXCLUDED.task_id
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &transaction, query, taskID, payerID, amount, method); err != nil {
		return nil, fmt.Errorf("ledger repository: hold %w", err)
	}

	return &transaction, nil
}

// GetByTaskID возвращает escrow-транзакцию по задаче.
func (r *LedgerRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error) {
	return common.GetByField[models.Transaction](ctx, r.db, "transactions", "task_id", taskID, ErrTransactionNotFound)
}

// Release выплачивает удержанные средства исполнителю за вычетом комиссии
// платформы. Операция идемпотентна: повторный вызов по уже выплаченной
// транзакции возвращает её без изменений.
func (r *LedgerRepository) Release(ctx context.Context, taskID, payeeID uuid.UUID, platformFee float64) (*models.Transaction, error) {
	var transaction models.Transaction

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &transaction, `
			SELECT * FROM transactions WHERE task_id = $1 FOR UPDATE
		`, taskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoHeldFunds
			}
			return fmt.Errorf("ledger repository: release lock %w", err)
		}

		if transaction.EscrowStatus == models.EscrowStatusReleased {
			return nil
		}
		if transaction.EscrowStatus != models.EscrowStatusHeld {
			return ErrNoHeldFunds
		}

		payout := money.Sub(transaction.Amount, platformFee)

		if err := tx.GetContext(ctx, &transaction, `
			UPDATE transactions
			SET escrow_status = 'released', payee_id = $2, platform_fee = $3, released_at = NOW()
			WHERE task_id = $1
			RETURNING *
		`, taskID, payeeID, platformFee); err != nil {
			return fmt.Errorf("ledger repository: release update %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wallets (user_id, available_balance, pending_balance)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id) DO UPDATE
			SET available_balance = wallets.available_balance + $2, updated_at = NOW()
		`, payeeID, payout); err != nil {
			return fmt.Errorf("ledger repository: release credit %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

// Refund возвращает удержанные средства клиенту через внешний шлюз:
// кошельки не трогаем, транзакция помечается refunded.
func (r *LedgerRepository) Refund(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &transaction, `
			SELECT * FROM transactions WHERE task_id = $1 FOR UPDATE
		`, taskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoHeldFunds
			}
			return fmt.Errorf("ledger repository: refund lock %w", err)
		}

		if transaction.EscrowStatus == models.EscrowStatusRefunded {
			return nil
		}
		if transaction.EscrowStatus != models.EscrowStatusHeld {
			return ErrNoHeldFunds
		}

		if err := tx.GetContext(ctx, &transaction, `
			UPDATE transactions SET escrow_status = 'refunded', released_at = NOW()
			WHERE task_id = $1
			RETURNING *
		`, taskID); err != nil {
			return fmt.Errorf("ledger repository: refund update %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

// ListByUser возвращает транзакции, где пользователь плательщик или получатель.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	query := `
		SELECT * FROM transactions
		WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("ledger repository: list by user %w", err)
	}

	return transactions, nil
}

// SumPlatformFees возвращает сумму собранных комиссий платформы.
func (r *LedgerRepository) SumPlatformFees(ctx context.Context) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(platform_fee), 0) FROM transactions WHERE escrow_status = 'released'
	`); err != nil {
		return 0, fmt.Errorf("ledger repository: sum platform fees %w", err)
	}

	return total, nil
}

// SumHeld возвращает сумму удержанных в escrow средств.
func (r *LedgerRepository) SumHeld(ctx context.Context) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE escrow_status = 'held'
	`); err != nil {
		return 0, fmt.Errorf("ledger repository: sum held %w", err)
	}

	return total, nil
}
