package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
	"github.com/kaziflow/backend/internal/repository/common"
	"github.com/kaziflow/backend/internal/validation"
)

// TaskRepository описывает зависимости TaskService от слоя хранилища.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, status string, clientID *uuid.UUID, limit, offset int) ([]models.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBidByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListBidsByTask(ctx context.Context, taskID uuid.UUID) ([]models.Bid, error)
	ListBidsByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Bid, error)
	CancelBid(ctx context.Context, bidID, freelancerID uuid.UUID) error
	AcceptBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
}

// BidFeeChecker сообщает, оплачена ли комиссия за отклик.
type BidFeeChecker interface {
	CanSubmitBid(ctx context.Context, userID, taskID uuid.UUID) (bool, error)
}

// TaskService управляет жизненным циклом задач и откликов.
type TaskService struct {
	tasks    TaskRepository
	fees     BidFeeChecker
	escrow   *EscrowService
	notifier Notifier
}

// NewTaskService создаёт сервис задач.
func NewTaskService(tasks TaskRepository, fees BidFeeChecker, escrow *EscrowService, notifier Notifier) *TaskService {
	return &TaskService{
		tasks:    tasks,
		fees:     fees,
		escrow:   escrow,
		notifier: notifier,
	}
}

// CreateTaskInput — данные новой задачи.
type CreateTaskInput struct {
	Title       string
	Description string
	Budget      float64
	Deadline    *time.Time
}

// CreateTask создаёт задачу в статусе draft. Задача станет open после
// подтверждения депозита.
func (s *TaskService) CreateTask(ctx context.Context, actor Actor, in CreateTaskInput) (*models.Task, error) {
	if !actor.IsClient() && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	if err := validation.ValidateTaskTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateTaskDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateBudget(in.Budget); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Deadline != nil && in.Deadline.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок выполнения не может быть в прошлом")
	}

	task := &models.Task{
		ClientID:    actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Deadline:    in.Deadline,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id":   task.ID,
		"client_id": actor.ID,
		"budget":    task.Budget,
	}).Info("task: создан черновик задачи")

	return task, nil
}

// GetTask возвращает задачу. Черновики видны только владельцу и админу.
func (s *TaskService) GetTask(ctx context.Context, actor Actor, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}

	if task.Status == models.TaskStatusDraft && task.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrTaskNotFound
	}

	return task, nil
}

// ListTasks возвращает задачи по фильтру.
func (s *TaskService) ListTasks(ctx context.Context, status string, clientID *uuid.UUID, limit, offset int) ([]models.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if status == "" {
		status = models.TaskStatusOpen
	}
	return s.tasks.List(ctx, status, clientID, limit, offset)
}

// SubmitBid создаёт отклик. Комиссия за отклик должна быть оплачена.
func (s *TaskService) SubmitBid(ctx context.Context, actor Actor, taskID uuid.UUID, amount float64, proposal string) (*models.Bid, error) {
	if !actor.IsFreelancer() {
		return nil, apperror.ErrForbidden
	}

	if err := validation.ValidateAmount("сумма отклика", amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateProposal(proposal); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "задача не принимает отклики")
	}
	if task.ClientID == actor.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственную задачу")
	}

	paid, err := s.fees.CanSubmitBid(ctx, actor.ID, taskID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, apperror.ErrFeeNotPaid
	}

	bid := &models.Bid{
		TaskID:       taskID,
		FreelancerID: actor.ID,
		Amount:       amount,
		Proposal:     proposal,
	}

	if err := s.tasks.CreateBid(ctx, bid); err != nil {
		if errors.Is(err, repository.ErrDuplicateBid) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на эту задачу")
		}
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, task.ClientID, "bid.created", map[string]interface{}{
			"task_id": taskID,
			"bid_id":  bid.ID,
		})
	}

	return bid, nil
}

// ListBids возвращает отклики по задаче. Полный список видят владелец и
// админ, фрилансер видит только собственные отклики.
func (s *TaskService) ListBids(ctx context.Context, actor Actor, taskID uuid.UUID) ([]models.Bid, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}

	bids, err := s.tasks.ListBidsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.ClientID == actor.ID || actor.IsAdmin() {
		return bids, nil
	}

	own := make([]models.Bid, 0, 1)
	for _, bid := range bids {
		if bid.FreelancerID == actor.ID {
			own = append(own, bid)
		}
	}
	return own, nil
}

// ListMyBids возвращает отклики фрилансера.
func (s *TaskService) ListMyBids(ctx context.Context, actor Actor, limit, offset int) ([]models.Bid, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tasks.ListBidsByFreelancer(ctx, actor.ID, limit, offset)
}

// CancelBid отменяет собственный pending-отклик.
func (s *TaskService) CancelBid(ctx context.Context, actor Actor, bidID uuid.UUID) error {
	err := s.tasks.CancelBid(ctx, bidID, actor.ID)
	if errors.Is(err, repository.ErrBidNotPending) {
		return apperror.New(apperror.ErrCodeConflict, "отклик нельзя отменить")
	}
	return err
}

// AcceptBid принимает отклик: задача переходит в работу, остальные
// pending-отклики отклоняются. Принять отклик может владелец задачи или админ.
func (s *TaskService) AcceptBid(ctx context.Context, actor Actor, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.tasks.GetBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, err
	}

	task, err := s.tasks.GetByID(ctx, bid.TaskID)
	if err != nil {
		return nil, err
	}
	if task.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	accepted, err := s.tasks.AcceptBid(ctx, bidID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBidNotFound):
			return nil, apperror.ErrBidNotFound
		case errors.Is(err, repository.ErrBidNotPending):
			return nil, apperror.New(apperror.ErrCodeConflict, "отклик уже обработан")
		case errors.Is(err, repository.ErrTaskNotOpen):
			return nil, apperror.New(apperror.ErrCodeConflict, "задача уже не открыта")
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id": accepted.TaskID,
		"bid_id":  accepted.ID,
	}).Info("task: отклик принят, задача в работе")

	if s.notifier != nil {
		s.notifier.Notify(ctx, accepted.FreelancerID, "bid.accepted", map[string]interface{}{
			"task_id": accepted.TaskID,
			"bid_id":  accepted.ID,
		})
	}

	return accepted, nil
}

// CompleteTask завершает задачу и выплачивает escrow принятому исполнителю.
func (s *TaskService) CompleteTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}

	if task.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if task.Status != models.TaskStatusInProgress || task.AcceptedBidID == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "задача не находится в работе")
	}

	bid, err := s.tasks.GetBidByID(ctx, *task.AcceptedBidID)
	if err != nil {
		return nil, err
	}

	// Сначала выплата, затем смена статуса. Release идемпотентен, поэтому
	// при сбое на любом шаге повторное завершение доводит операцию до
	// конца; обратный порядок оставил бы удержанные средства без пути
	// выплаты.
	if _, err := s.escrow.Release(ctx, taskID, bid.FreelancerID); err != nil {
		return nil, err
	}

	if err := s.tasks.UpdateStatus(ctx, taskID, models.TaskStatusInProgress, models.TaskStatusCompleted); err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return nil, apperror.New(apperror.ErrCodeConflict, "статус задачи изменился, повторите запрос")
		}
		return nil, err
	}

	return s.tasks.GetByID(ctx, taskID)
}

// CancelTask отменяет задачу. Если по ней удержаны средства, они
// возвращаются клиенту через шлюз.
func (s *TaskService) CancelTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}

	if task.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if !models.CanTransitionTask(task.Status, models.TaskStatusCancelled) {
		return nil, apperror.New(apperror.ErrCodeConflict, "задачу нельзя отменить в текущем статусе")
	}

	// Возврат до смены статуса по той же причине, что и в CompleteTask:
	// Refund идемпотентен, повторная отмена доводит операцию до конца.
	if task.Status != models.TaskStatusDraft {
		if _, err := s.escrow.Refund(ctx, taskID); err != nil && !apperror.HasCode(err, apperror.ErrCodeNoHeldFunds) {
			return nil, err
		}
	}

	if err := s.tasks.UpdateStatus(ctx, taskID, task.Status, models.TaskStatusCancelled); err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return nil, apperror.New(apperror.ErrCodeConflict, "статус задачи изменился, повторите запрос")
		}
		return nil, err
	}

	return s.tasks.GetByID(ctx, taskID)
}
