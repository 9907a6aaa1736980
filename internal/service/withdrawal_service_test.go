package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

func TestWithdrawalService_RequestDebitsBalance(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	svc := NewWithdrawalService(repo, 100, nil)
	ctx := context.Background()

	userID := uuid.New()
	repo.balances[userID] = 1000

	withdrawal, err := svc.Request(ctx, Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      400,
		Method:      models.PaymentMethodMpesa,
		Destination: "0712345678",
	})
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalStatusRequested, withdrawal.Status)
	assert.Equal(t, "254712345678", withdrawal.Destination)
	assert.Equal(t, 600.0, repo.balances[userID])
}

func TestWithdrawalService_RequestBelowMinimum(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	svc := NewWithdrawalService(repo, 100, nil)

	userID := uuid.New()
	repo.balances[userID] = 1000

	_, err := svc.Request(context.Background(), Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      50,
		Method:      models.PaymentMethodMpesa,
		Destination: "0712345678",
	})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBelowMinimum))
}

func TestWithdrawalService_RequestInsufficientBalance(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	svc := NewWithdrawalService(repo, 100, nil)

	userID := uuid.New()
	repo.balances[userID] = 200

	_, err := svc.Request(context.Background(), Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      500,
		Method:      models.PaymentMethodMpesa,
		Destination: "0712345678",
	})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInsufficientBalance))
	assert.Equal(t, 200.0, repo.balances[userID])
}

func TestWithdrawalService_FailRefundsBalance(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	notifier := &recordingNotifier{}
	svc := NewWithdrawalService(repo, 100, notifier)
	ctx := context.Background()

	userID := uuid.New()
	repo.balances[userID] = 1000

	withdrawal, err := svc.Request(ctx, Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      400,
		Method:      models.PaymentMethodMpesa,
		Destination: "0712345678",
	})
	require.NoError(t, err)
	assert.Equal(t, 600.0, repo.balances[userID])

	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}
	_, err = svc.StartProcessing(ctx, admin, withdrawal.ID)
	require.NoError(t, err)

	failed, err := svc.Fail(ctx, admin, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, failed.Status)

	// Компенсирующее зачисление вернуло сумму.
	assert.Equal(t, 1000.0, repo.balances[userID])
	assert.True(t, notifier.has("withdrawal.failed"))

	// Повторный Fail — no-op без второго зачисления.
	_, err = svc.Fail(ctx, admin, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, repo.balances[userID])
}

func TestWithdrawalService_CompleteLifecycle(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	notifier := &recordingNotifier{}
	svc := NewWithdrawalService(repo, 100, notifier)
	ctx := context.Background()

	userID := uuid.New()
	repo.balances[userID] = 1000

	withdrawal, err := svc.Request(ctx, Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      400,
		Method:      models.PaymentMethodStripe,
		Destination: "acct_123",
	})
	require.NoError(t, err)

	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}

	// Завершить можно только из processing.
	_, err = svc.Complete(ctx, admin, withdrawal.ID)
	assert.True(t, apperror.IsConflict(err))

	_, err = svc.StartProcessing(ctx, admin, withdrawal.ID)
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, admin, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, completed.Status)
	assert.True(t, notifier.has("withdrawal.completed"))

	// Выполненную заявку нельзя пометить неуспешной.
	_, err = svc.Fail(ctx, admin, withdrawal.ID)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, 600.0, repo.balances[userID])
}

func TestWithdrawalService_AdminOnlyOperations(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	svc := NewWithdrawalService(repo, 100, nil)
	ctx := context.Background()

	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}

	_, err := svc.StartProcessing(ctx, freelancer, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	_, err = svc.Complete(ctx, freelancer, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	_, err = svc.Fail(ctx, freelancer, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
	_, err = svc.ListPending(ctx, freelancer, 10, 0)
	assert.True(t, apperror.IsForbidden(err))
}

func TestWithdrawalService_GetForeignWithdrawal(t *testing.T) {
	repo := newFakeWithdrawalRepo()
	svc := NewWithdrawalService(repo, 100, nil)
	ctx := context.Background()

	userID := uuid.New()
	repo.balances[userID] = 1000
	withdrawal, err := svc.Request(ctx, Actor{ID: userID, Role: models.RoleFreelancer}, RequestInput{
		Amount:      400,
		Method:      models.PaymentMethodMpesa,
		Destination: "0712345678",
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, Actor{ID: uuid.New(), Role: models.RoleFreelancer}, withdrawal.ID)
	assert.True(t, apperror.IsForbidden(err))

	got, err := svc.Get(ctx, Actor{ID: uuid.New(), Role: models.RoleAdmin}, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.ID, got.ID)
}
