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
	// ErrDepositNotFound возвращается, когда депозит не найден.
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrDepositReferenceMismatch возвращается, когда внешняя ссылка платежа
	// не совпадает с сохранённой.
	ErrDepositReferenceMismatch = errors.New("deposit reference mismatch")
)

// DepositRepository отвечает за работу с таблицей task_deposits.
type DepositRepository struct {
	db *sqlx.DB
}

// NewDepositRepository создаёт экземпляр репозитория.
func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// Create создаёт запись депозита в статусе pending.
func (r *DepositRepository) Create(ctx context.Context, deposit *models.TaskDeposit) error {
	query := `
		INSERT INTO task_deposits (task_id, client_id, deposit_amount, original_budget, payment_method, payment_status, external_reference)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING id, payment_status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		deposit.TaskID, deposit.ClientID, deposit.DepositAmount, deposit.OriginalBudget,
		deposit.PaymentMethod, deposit.ExternalReference,
	).Scan(&deposit.ID, &deposit.PaymentStatus, &deposit.CreatedAt, &deposit.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("deposit repository: create %w", err)
	}

	return nil
}

// GetByTaskID возвращает депозит по задаче.
func (r *DepositRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.TaskDeposit, error) {
	return common.GetByField[models.TaskDeposit](ctx, r.db, "task_deposits", "task_id", taskID, ErrDepositNotFound)
}

// GetByReference возвращает депозит по внешней ссылке платежа.
func (r *DepositRepository) GetByReference(ctx context.Context, reference string) (*models.TaskDeposit, error) {
	return common.GetByField[models.TaskDeposit](ctx, r.db, "task_deposits", "external_reference", reference, ErrDepositNotFound)
}

// SetReference сохраняет внешнюю ссылку платежа после инициации в шлюзе.
func (r *DepositRepository) SetReference(ctx context.Context, taskID uuid.UUID, method, reference string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE task_deposits
		SET payment_method = $2, external_reference = $3, payment_status = 'processing', updated_at = NOW()
		WHERE task_id = $1 AND payment_status IN ('pending', 'failed')
	`, taskID, method, reference)
	if err != nil {
		return fmt.Errorf("deposit repository: set reference %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deposit repository: set reference rows affected %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrStaleState
	}

	return nil
}

// Confirm атомарно подтверждает депозит и публикует задачу (draft -> open).
// Подтверждение идемпотентно: повторный вызов по уже подтверждённому депозиту
// возвращает запись без изменений. Ссылка платежа обязана совпадать.
func (r *DepositRepository) Confirm(ctx context.Context, taskID uuid.UUID, reference string) (*models.TaskDeposit, error) {
	var deposit models.TaskDeposit

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &deposit, `SELECT * FROM task_deposits WHERE task_id = $1 FOR UPDATE`, taskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDepositNotFound
			}
			return fmt.Errorf("deposit repository: confirm lock %w", err)
		}

		if deposit.ExternalReference == nil || *deposit.ExternalReference != reference {
			return ErrDepositReferenceMismatch
		}

		if deposit.PaymentStatus == models.DepositStatusConfirmed {
			return nil
		}

		if err := tx.GetContext(ctx, &deposit, `
			UPDATE task_deposits SET payment_status = 'confirmed', updated_at = NOW()
			WHERE task_id = $1
			RETURNING *
		`, taskID); err != nil {
			return fmt.Errorf("deposit repository: confirm update %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = 'open', updated_at = NOW()
			WHERE id = $1 AND status = 'draft'
		`, taskID); err != nil {
			return fmt.Errorf("deposit repository: confirm open task %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &deposit, nil
}

// MarkFailed помечает депозит неуспешным, задача остаётся в draft.
func (r *DepositRepository) MarkFailed(ctx context.Context, taskID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE task_deposits SET payment_status = 'failed', updated_at = NOW()
		WHERE task_id = $1 AND payment_status IN ('pending', 'processing')
	`, taskID)
	if err != nil {
		return fmt.Errorf("deposit repository: mark failed %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deposit repository: mark failed rows affected %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrStaleState
	}

	return nil
}

// ExpireStale помечает неуспешными депозиты, ожидающие оплату дольше ttl.
// Возвращает количество затронутых записей.
func (r *DepositRepository) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE task_deposits SET payment_status = 'failed', updated_at = NOW()
		WHERE payment_status IN ('pending', 'processing') AND updated_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("deposit repository: expire stale %w", err)
	}
	return result.RowsAffected()
}
