package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/money"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
)

// EscrowLedger описывает зависимости EscrowService от слоя хранилища.
type EscrowLedger interface {
	Hold(ctx context.Context, taskID, payerID uuid.UUID, amount float64, method string) (*models.Transaction, error)
	Release(ctx context.Context, taskID, payeeID uuid.UUID, platformFee float64) (*models.Transaction, error)
	Refund(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error)
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// EscrowService управляет удержанием, выплатой и возвратом средств по задачам.
type EscrowService struct {
	ledger         EscrowLedger
	platformFeePct float64
	notifier       Notifier
}

// NewEscrowService создаёт сервис escrow.
func NewEscrowService(ledger EscrowLedger, platformFeePct float64, notifier Notifier) *EscrowService {
	return &EscrowService{
		ledger:         ledger,
		platformFeePct: platformFeePct,
		notifier:       notifier,
	}
}

// Hold идемпотентно удерживает подтверждённый депозит по задаче.
func (s *EscrowService) Hold(ctx context.Context, taskID, payerID uuid.UUID, amount float64, method string) (*models.Transaction, error) {
	transaction, err := s.ledger.Hold(ctx, taskID, payerID, amount, method)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id": taskID,
		"amount":  amount,
	}).Info("escrow: средства удержаны")

	return transaction, nil
}

// Release выплачивает удержанные средства исполнителю за вычетом комиссии
// платформы. Повторный вызов по уже выплаченной задаче — no-op.
func (s *EscrowService) Release(ctx context.Context, taskID, payeeID uuid.UUID) (*models.Transaction, error) {
	held, err := s.ledger.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrNoHeldFunds
		}
		return nil, err
	}

	platformFee := money.PlatformFee(held.Amount, s.platformFeePct)

	transaction, err := s.ledger.Release(ctx, taskID, payeeID, platformFee)
	if err != nil {
		if errors.Is(err, repository.ErrNoHeldFunds) {
			return nil, apperror.ErrNoHeldFunds
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id":      taskID,
		"payee_id":     payeeID,
		"amount":       transaction.Amount,
		"platform_fee": transaction.PlatformFee,
	}).Info("escrow: средства выплачены исполнителю")

	if s.notifier != nil {
		s.notifier.Notify(ctx, payeeID, "escrow.released", map[string]interface{}{
			"task_id": taskID,
			"amount":  money.Sub(transaction.Amount, transaction.PlatformFee),
		})
	}

	return transaction, nil
}

// Refund возвращает удержанные средства клиенту. Возврат идёт через внешний
// шлюз, кошельки платформы не затрагиваются.
func (s *EscrowService) Refund(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error) {
	transaction, err := s.ledger.Refund(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNoHeldFunds) || errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrNoHeldFunds
		}
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"task_id": taskID,
		"amount":  transaction.Amount,
	}).Info("escrow: средства возвращены клиенту")

	if s.notifier != nil {
		s.notifier.Notify(ctx, transaction.PayerID, "escrow.refunded", map[string]interface{}{
			"task_id": taskID,
			"amount":  transaction.Amount,
		})
	}

	return transaction, nil
}

// GetByTask возвращает escrow-транзакцию по задаче.
func (s *EscrowService) GetByTask(ctx context.Context, taskID uuid.UUID) (*models.Transaction, error) {
	transaction, err := s.ledger.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrNoHeldFunds
		}
		return nil, err
	}
	return transaction, nil
}

// GetWallet возвращает кошелёк пользователя.
func (s *EscrowService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.ledger.GetWallet(ctx, userID)
}

// ListTransactions возвращает транзакции пользователя.
func (s *EscrowService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}
