package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/gateway"
	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
	"github.com/kaziflow/backend/internal/validation"
)

// BidFeeRepository описывает зависимости BidFeeService от слоя хранилища.
type BidFeeRepository interface {
	Create(ctx context.Context, payment *models.BidFeePayment) error
	SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BidFeePayment, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.BidFeePayment, error)
	Complete(ctx context.Context, checkoutRequestID, receipt string) (*models.BidFeePayment, error)
	Fail(ctx context.Context, checkoutRequestID string) (*models.BidFeePayment, error)
	HasCompleted(ctx context.Context, userID, taskID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BidFeePayment, error)
}

// BidFeeService управляет фиксированной комиссией за отклик. Комиссия
// оплачивается через M-Pesa STK push до подачи отклика.
type BidFeeService struct {
	payments BidFeeRepository
	tasks    DepositTaskReader
	gateways *gateway.Registry
	amount   float64
	notifier Notifier
}

// NewBidFeeService создаёт сервис комиссии за отклик.
func NewBidFeeService(payments BidFeeRepository, tasks DepositTaskReader, gateways *gateway.Registry, amount float64, notifier Notifier) *BidFeeService {
	return &BidFeeService{
		payments: payments,
		tasks:    tasks,
		gateways: gateways,
		amount:   amount,
		notifier: notifier,
	}
}

// InitiateBidFeeInput — запрос на оплату комиссии.
type InitiateBidFeeInput struct {
	TaskID      uuid.UUID
	PhoneNumber string
}

// InitiateBidFeeResult — итог инициации STK push.
type InitiateBidFeeResult struct {
	Payment      *models.BidFeePayment
	ClientAction string
}

// Initiate создаёт платёж комиссии и отправляет STK push на телефон.
// Второй незавершённый платёж по той же задаче не допускается.
func (s *BidFeeService) Initiate(ctx context.Context, actor Actor, in InitiateBidFeeInput) (*InitiateBidFeeResult, error) {
	if !actor.IsFreelancer() {
		return nil, apperror.ErrForbidden
	}

	task, err := s.tasks.GetByID(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperror.ErrTaskNotFound
		}
		return nil, err
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "задача не принимает отклики")
	}

	phone, err := validation.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	paid, err := s.payments.HasCompleted(ctx, actor.ID, in.TaskID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, apperror.New(apperror.ErrCodeConflict, "комиссия по этой задаче уже оплачена")
	}

	payment := &models.BidFeePayment{
		UserID:      actor.ID,
		TaskID:      in.TaskID,
		Amount:      s.amount,
		PhoneNumber: phone,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrBidFeePending) {
			return nil, apperror.ErrDuplicatePending
		}
		return nil, err
	}

	g, err := s.gateways.Resolve(models.PaymentMethodMpesa)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "шлюз mpesa не настроен")
	}

	handle, err := g.Initiate(ctx, gateway.InitiateRequest{
		Kind:        "bid_fee",
		ReferenceID: payment.ID,
		Amount:      s.amount,
		PhoneNumber: phone,
		Description: "Комиссия за отклик",
	})
	if err != nil {
		// Платёж остаётся pending и будет закрыт воркером по TTL.
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "платёжный шлюз недоступен")
	}

	if err := s.payments.SetCheckoutRequestID(ctx, payment.ID, handle.ExternalReference); err != nil {
		return nil, err
	}
	payment.CheckoutRequestID = &handle.ExternalReference

	logger.Log.WithFields(map[string]interface{}{
		"user_id":             actor.ID,
		"task_id":             in.TaskID,
		"checkout_request_id": handle.ExternalReference,
	}).Info("bid fee: STK push отправлен")

	return &InitiateBidFeeResult{Payment: payment, ClientAction: handle.ClientAction}, nil
}

// HandleCallback обрабатывает колбэк STK push по checkout_request_id.
// Повторная доставка успешного колбэка безопасна.
func (s *BidFeeService) HandleCallback(ctx context.Context, result *gateway.CallbackResult) error {
	if result.Success {
		payment, err := s.payments.Complete(ctx, result.ExternalReference, result.Receipt)
		if err != nil {
			if errors.Is(err, repository.ErrBidFeeNotFound) {
				return apperror.New(apperror.ErrCodeNotFound, "платёж комиссии не найден")
			}
			return err
		}

		if s.notifier != nil {
			s.notifier.Notify(ctx, payment.UserID, "bid_fee.completed", map[string]interface{}{
				"task_id": payment.TaskID,
				"receipt": payment.Receipt,
			})
		}
		return nil
	}

	if _, err := s.payments.GetByCheckoutRequestID(ctx, result.ExternalReference); err != nil {
		if errors.Is(err, repository.ErrBidFeeNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "платёж комиссии не найден")
		}
		return err
	}

	payment, err := s.payments.Fail(ctx, result.ExternalReference)
	if err != nil {
		if errors.Is(err, repository.ErrBidFeeNotFound) {
			// Платёж уже завершён, повторный колбэк игнорируем.
			return nil
		}
		return err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, payment.UserID, "bid_fee.failed", map[string]interface{}{
			"task_id": payment.TaskID,
			"reason":  result.FailureReason,
		})
	}

	return nil
}

// CanSubmitBid сообщает, оплатил ли фрилансер комиссию по задаче.
func (s *BidFeeService) CanSubmitBid(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	return s.payments.HasCompleted(ctx, userID, taskID)
}

// Get возвращает платёж комиссии с проверкой прав.
func (s *BidFeeService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.BidFeePayment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBidFeeNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "платёж комиссии не найден")
		}
		return nil, err
	}

	if payment.UserID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	return payment, nil
}

// List возвращает платежи комиссии пользователя.
func (s *BidFeeService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.BidFeePayment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.payments.ListByUser(ctx, actor.ID, limit, offset)
}
