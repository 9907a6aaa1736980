package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
	"github.com/kaziflow/backend/internal/repository/common"
	"github.com/kaziflow/backend/internal/validation"
)

// WithdrawalRepository описывает зависимости WithdrawalService от слоя хранилища.
type WithdrawalRepository interface {
	Create(ctx context.Context, userID uuid.UUID, amount float64, method, destination string) (*models.Withdrawal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Withdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*models.Withdrawal, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
}

// WithdrawalService управляет выводом средств. Сумма списывается с баланса
// сразу при создании заявки; при неуспехе внешней выплаты возвращается
// компенсирующим зачислением.
type WithdrawalService struct {
	withdrawals WithdrawalRepository
	minAmount   float64
	notifier    Notifier
}

// NewWithdrawalService создаёт сервис вывода средств.
func NewWithdrawalService(withdrawals WithdrawalRepository, minAmount float64, notifier Notifier) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		minAmount:   minAmount,
		notifier:    notifier,
	}
}

// RequestInput — заявка на вывод средств.
type RequestInput struct {
	Amount      float64
	Method      string
	Destination string
}

// Request создаёт заявку и оптимистично списывает сумму с баланса.
func (s *WithdrawalService) Request(ctx context.Context, actor Actor, in RequestInput) (*models.Withdrawal, error) {
	if err := validation.ValidateAmount("сумма вывода", in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Amount < s.minAmount {
		return nil, apperror.ErrBelowMinimum
	}
	if in.Method != models.PaymentMethodMpesa && in.Method != models.PaymentMethodStripe {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный способ вывода")
	}
	if err := validation.ValidateNonEmpty("реквизиты", in.Destination); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	destination := in.Destination
	if in.Method == models.PaymentMethodMpesa {
		phone, err := validation.NormalizePhone(in.Destination)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		destination = phone
	}

	withdrawal, err := s.withdrawals.Create(ctx, actor.ID, in.Amount, in.Method, destination)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientBalance
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"withdrawal_id": withdrawal.ID,
		"user_id":       actor.ID,
		"amount":        in.Amount,
	}).Info("withdrawal: заявка создана, средства списаны")

	return withdrawal, nil
}

// Get возвращает заявку с проверкой прав.
func (s *WithdrawalService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, apperror.ErrWithdrawalNotFound
		}
		return nil, err
	}

	if withdrawal.UserID != actor.ID && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	return withdrawal, nil
}

// List возвращает заявки пользователя.
func (s *WithdrawalService) List(ctx context.Context, actor Actor, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.withdrawals.ListByUser(ctx, actor.ID, limit, offset)
}

// ListPending возвращает заявки, ожидающие обработки (для админки).
func (s *WithdrawalService) ListPending(ctx context.Context, actor Actor, limit, offset int) ([]models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.withdrawals.ListByStatus(ctx, models.WithdrawalStatusRequested, limit, offset)
}

// StartProcessing переводит заявку в processing перед внешней выплатой.
func (s *WithdrawalService) StartProcessing(ctx context.Context, actor Actor, id uuid.UUID) (*models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.withdrawals.UpdateStatus(ctx, id, models.WithdrawalStatusRequested, models.WithdrawalStatusProcessing)
	if err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return nil, apperror.New(apperror.ErrCodeConflict, "заявка уже обработана")
		}
		return nil, err
	}

	return withdrawal, nil
}

// Complete помечает заявку выполненной после успешной внешней выплаты.
func (s *WithdrawalService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.withdrawals.UpdateStatus(ctx, id, models.WithdrawalStatusProcessing, models.WithdrawalStatusCompleted)
	if err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return nil, apperror.New(apperror.ErrCodeConflict, "заявка не находится в обработке")
		}
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, withdrawal.UserID, "withdrawal.completed", map[string]interface{}{
			"withdrawal_id": withdrawal.ID,
			"amount":        withdrawal.Amount,
		})
	}

	return withdrawal, nil
}

// Fail помечает заявку неуспешной; сумма возвращается на баланс
// компенсирующим зачислением.
func (s *WithdrawalService) Fail(ctx context.Context, actor Actor, id uuid.UUID) (*models.Withdrawal, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.withdrawals.MarkFailed(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWithdrawalNotFound):
			return nil, apperror.ErrWithdrawalNotFound
		case errors.Is(err, common.ErrStaleState):
			return nil, apperror.New(apperror.ErrCodeConflict, "выполненную заявку нельзя пометить неуспешной")
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"withdrawal_id": withdrawal.ID,
		"user_id":       withdrawal.UserID,
		"amount":        withdrawal.Amount,
	}).Info("withdrawal: выплата не прошла, средства возвращены на баланс")

	if s.notifier != nil {
		s.notifier.Notify(ctx, withdrawal.UserID, "withdrawal.failed", map[string]interface{}{
			"withdrawal_id": withdrawal.ID,
			"amount":        withdrawal.Amount,
		})
	}

	return withdrawal, nil
}
