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

var (
	// ErrTaskNotFound возвращается, когда задача не найдена.
	ErrTaskNotFound = errors.New("task not found")
	// ErrBidNotFound возвращается, когда отклик не найден.
	ErrBidNotFound = errors.New("bid not found")
	// ErrTaskNotOpen возвращается при попытке принять отклик на задаче,
	// которая уже не открыта.
	ErrTaskNotOpen = errors.New("task is not open")
	// ErrBidNotPending возвращается при попытке принять отклик не в статусе pending.
	ErrBidNotPending = errors.New("bid is not pending")
	// ErrDuplicateBid возвращается, когда фрилансер уже откликался на задачу.
	ErrDuplicateBid = errors.New("bid already exists for this task")
)

// TaskRepository отвечает за работу с таблицами tasks и bids.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository создаёт экземпляр репозитория.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create создаёт задачу в статусе draft.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (client_id, title, description, budget, deadline, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		task.ClientID, task.Title, task.Description, task.Budget, task.Deadline,
	).Scan(&task.ID, &task.Status, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return fmt.Errorf("task repository: create %w", err)
	}

	return nil
}

// GetByID возвращает задачу по идентификатору.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return common.GetByID[models.Task](ctx, r.db, "tasks", id, ErrTaskNotFound)
}

// List возвращает задачи с фильтром по статусу и клиенту.
func (r *TaskRepository) List(ctx context.Context, status string, clientID *uuid.UUID, limit, offset int) ([]models.Task, error) {
	query := `
		SELECT t.*, COUNT(b.id) AS bids_count
		FROM tasks t
		LEFT JOIN bids b ON b.task_id = t.id AND b.status = 'pending'
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if status != "" {
		query += fmt.Sprintf(" AND t.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	if clientID != nil {
		query += fmt.Sprintf(" AND t.client_id = $%d", argIndex)
		args = append(args, *clientID)
		argIndex++
	}

	query += " GROUP BY t.id ORDER BY t.created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("task repository: list %w", err)
	}

	return tasks, nil
}

// UpdateStatus переводит задачу в новый статус при условии текущего.
// Возвращает ErrStaleState, если статус успели изменить конкурентно.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("task repository: update status %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("task repository: update status rows affected %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrStaleState
	}

	return nil
}

// CreateBid создаёт отклик фрилансера на задачу.
func (r *TaskRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (task_id, freelancer_id, amount, proposal, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		bid.TaskID, bid.FreelancerID, bid.Amount, bid.Proposal,
	).Scan(&bid.ID, &bid.Status, &bid.CreatedAt, &bid.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBid
		}
		return fmt.Errorf("task repository: create bid %w", err)
	}

	return nil
}

// GetBidByID возвращает отклик по идентификатору.
func (r *TaskRepository) GetBidByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return common.GetByID[models.Bid](ctx, r.db, "bids", id, ErrBidNotFound)
}

// ListBidsByTask возвращает отклики по задаче.
func (r *TaskRepository) ListBidsByTask(ctx context.Context, taskID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE task_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &bids, query, taskID); err != nil {
		return nil, fmt.Errorf("task repository: list bids %w", err)
	}
	return bids, nil
}

// ListBidsByFreelancer возвращает отклики фрилансера.
func (r *TaskRepository) ListBidsByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE freelancer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &bids, query, freelancerID, limit, offset); err != nil {
		return nil, fmt.Errorf("task repository: list bids by freelancer %w", err)
	}
	return bids, nil
}

// CancelBid отменяет собственный отклик фрилансера, пока он в статусе pending.
func (r *TaskRepository) CancelBid(ctx context.Context, bidID, freelancerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bids SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND freelancer_id = $2 AND status = 'pending'
	`, bidID, freelancerID)
	if err != nil {
		return fmt.Errorf("task repository: cancel bid %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("task repository: cancel bid rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrBidNotPending
	}

	return nil
}

// AcceptBid атомарно принимает отклик: отклик становится accepted, задача
// переходит open -> in_progress, остальные pending-отклики отклоняются.
// Условное обновление по статусу задачи защищает от конкурентного принятия.
func (r *TaskRepository) AcceptBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var accepted models.Bid

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var bid models.Bid
		if err := tx.GetContext(ctx, &bid, `SELECT * FROM bids WHERE id = $1 FOR UPDATE`, bidID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBidNotFound
			}
			return fmt.Errorf("task repository: accept bid lock %w", err)
		}

		if bid.Status != models.BidStatusPending {
			return ErrBidNotPending
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = 'in_progress', accepted_bid_id = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'open'
		`, bid.TaskID, bid.ID)
		if err != nil {
			return fmt.Errorf("task repository: accept bid update task %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("task repository: accept bid rows affected %w", err)
		}
		if rowsAffected == 0 {
			return ErrTaskNotOpen
		}

		if err := tx.GetContext(ctx, &bid, `
			UPDATE bids SET status = 'accepted', updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, bid.ID); err != nil {
			return fmt.Errorf("task repository: accept bid update bid %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = 'rejected', updated_at = NOW()
			WHERE task_id = $1 AND id <> $2 AND status = 'pending'
		`, bid.TaskID, bid.ID); err != nil {
			return fmt.Errorf("task repository: accept bid reject others %w", err)
		}

		accepted = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &accepted, nil
}

// CountByStatus возвращает количество задач в разрезе статусов.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM tasks GROUP BY status`); err != nil {
		return nil, fmt.Errorf("task repository: count by status %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
