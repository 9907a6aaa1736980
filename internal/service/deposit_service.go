package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/gateway"
	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/money"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
)

// DepositRepository описывает зависимости DepositService от слоя хранилища.
type DepositRepository interface {
	Create(ctx context.Context, deposit *models.TaskDeposit) error
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.TaskDeposit, error)
	GetByReference(ctx context.Context, reference string) (*models.TaskDeposit, error)
	SetReference(ctx context.Context, taskID uuid.UUID, method, reference string) error
	Confirm(ctx context.Context, taskID uuid.UUID, reference string) (*models.TaskDeposit, error)
	MarkFailed(ctx context.Context, taskID uuid.UUID) error
}

// DepositTaskReader читает задачи для проверки прав и бюджета.
type DepositTaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// DepositService управляет предоплатой за размещение задачи: 50% бюджета
// через выбранный платёжный шлюз.
type DepositService struct {
	deposits DepositRepository
	tasks    DepositTaskReader
	gateways *gateway.Registry
	escrow   *EscrowService
	notifier Notifier
}

// NewDepositService создаёт сервис депозитов.
func NewDepositService(deposits DepositRepository, tasks DepositTaskReader, gateways *gateway.Registry, escrow *EscrowService, notifier Notifier) *DepositService {
	return &DepositService{
		deposits: deposits,
		tasks:    tasks,
		gateways: gateways,
		escrow:   escrow,
		notifier: notifier,
	}
}

// InitiateInput — запрос на инициацию депозита.
type InitiateInput struct {
	TaskID        uuid.UUID
	PaymentMethod string
	PhoneNumber   string
}

// InitiateResult — итог инициации: сумма, ссылка и действие для клиента.
type InitiateResult struct {
	Deposit      *models.TaskDeposit
	ClientAction string
}

// ComputeDeposit возвращает сумму предоплаты для бюджета.
func ComputeDeposit(budget float64) float64 {
	return money.Deposit(budget)
}

// Initiate создаёт (или переиспользует) запись депозита и запускает платёж
// в шлюзе. Повторная инициация допустима только для pending или failed
// депозита.
func (s *DepositService) Initiate(ctx context.Context, actor Actor, in InitiateInput) (*InitiateResult, error) {
	task, err := s.tasks.GetByID(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}

	if task.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if task.Status != models.TaskStatusDraft {
		return nil, apperror.New(apperror.ErrCodeConflict, "депозит можно оплатить только для черновика задачи")
	}

	deposit, err := s.deposits.GetByTaskID(ctx, in.TaskID)
	if errors.Is(err, repository.ErrDepositNotFound) {
		deposit = &models.TaskDeposit{
			TaskID:         task.ID,
			ClientID:       task.ClientID,
			DepositAmount:  money.Deposit(task.Budget),
			OriginalBudget: task.Budget,
		}
		if err := s.deposits.Create(ctx, deposit); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	switch deposit.PaymentStatus {
	case models.DepositStatusConfirmed:
		return nil, apperror.New(apperror.ErrCodeConflict, "депозит уже подтверждён")
	case models.DepositStatusProcessing:
		return nil, apperror.ErrDuplicatePending
	}

	g, err := s.gateways.Resolve(in.PaymentMethod)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный способ оплаты")
	}

	handle, err := g.Initiate(ctx, gateway.InitiateRequest{
		Kind:        "task_deposit",
		ReferenceID: task.ID,
		Amount:      deposit.DepositAmount,
		PhoneNumber: in.PhoneNumber,
		Description: "Депозит за размещение задачи",
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "платёжный шлюз недоступен")
	}

	if err := s.deposits.SetReference(ctx, task.ID, in.PaymentMethod, handle.ExternalReference); err != nil {
		return nil, err
	}

	deposit, err = s.deposits.GetByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id":   task.ID,
		"method":    in.PaymentMethod,
		"reference": handle.ExternalReference,
		"amount":    deposit.DepositAmount,
	}).Info("deposit: платёж инициирован")

	return &InitiateResult{Deposit: deposit, ClientAction: handle.ClientAction}, nil
}

// HandleCallback обрабатывает колбэк шлюза по депозиту. Успешный колбэк
// подтверждает депозит, публикует задачу и удерживает средства в escrow.
// Доставка как минимум один раз: повторный колбэк безопасен.
func (s *DepositService) HandleCallback(ctx context.Context, result *gateway.CallbackResult) error {
	deposit, err := s.deposits.GetByReference(ctx, result.ExternalReference)
	if err != nil {
		if errors.Is(err, repository.ErrDepositNotFound) {
			return apperror.ErrDepositNotFound
		}
		return err
	}

	if !result.Success {
		if err := s.deposits.MarkFailed(ctx, deposit.TaskID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"task_id": deposit.TaskID,
				"error":   err.Error(),
			}).Warn("deposit: не удалось пометить платёж неуспешным")
		}
		if s.notifier != nil {
			s.notifier.Notify(ctx, deposit.ClientID, "deposit.failed", map[string]interface{}{
				"task_id": deposit.TaskID,
				"reason":  result.FailureReason,
			})
		}
		return nil
	}

	confirmed, err := s.deposits.Confirm(ctx, deposit.TaskID, result.ExternalReference)
	if err != nil {
		if errors.Is(err, repository.ErrDepositReferenceMismatch) {
			return apperror.ErrReferenceMismatch
		}
		return err
	}

	method := models.PaymentMethodMpesa
	if confirmed.PaymentMethod != nil {
		method = *confirmed.PaymentMethod
	}

	if _, err := s.escrow.Hold(ctx, confirmed.TaskID, confirmed.ClientID, confirmed.DepositAmount, method); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, confirmed.ClientID, "deposit.confirmed", map[string]interface{}{
			"task_id": confirmed.TaskID,
			"amount":  confirmed.DepositAmount,
		})
	}

	return nil
}

// Get возвращает депозит по задаче с проверкой прав.
func (s *DepositService) Get(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.TaskDeposit, error) {
	deposit, err := s.deposits.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrDepositNotFound) {
			return nil, apperror.ErrDepositNotFound
		}
		return nil, err
	}

	if deposit.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	return deposit, nil
}
