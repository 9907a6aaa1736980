package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaziflow/backend/internal/gateway"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
	"github.com/kaziflow/backend/internal/repository"
)

func newDepositFixture(t *testing.T) (*DepositService, *fakeTaskRepo, *fakeDepositRepo, *fakeLedger, *fakeGateway, *recordingNotifier) {
	t.Helper()

	tasks := newFakeTaskRepo()
	deposits := newFakeDepositRepo(tasks)
	ledger := newFakeLedger()
	mpesa := &fakeGateway{
		name:   models.PaymentMethodMpesa,
		handle: gateway.PaymentHandle{ExternalReference: "ws_CO_1", ClientAction: "Введите PIN на телефоне"},
	}
	notifier := &recordingNotifier{}
	escrow := NewEscrowService(ledger, 10, notifier)
	svc := NewDepositService(deposits, tasks, gateway.NewRegistry(mpesa), escrow, notifier)

	return svc, tasks, deposits, ledger, mpesa, notifier
}

func TestDepositService_InitiateComputesHalfBudget(t *testing.T) {
	svc, tasks, _, _, mpesa, _ := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 333.33)

	result, err := svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	require.NoError(t, err)

	assert.Equal(t, 166.67, result.Deposit.DepositAmount)
	assert.Equal(t, models.DepositStatusProcessing, result.Deposit.PaymentStatus)
	assert.Equal(t, "Введите PIN на телефоне", result.ClientAction)

	require.Len(t, mpesa.initiated, 1)
	assert.Equal(t, "task_deposit", mpesa.initiated[0].Kind)
	assert.Equal(t, 166.67, mpesa.initiated[0].Amount)
}

func TestDepositService_InitiateForeignTask(t *testing.T) {
	svc, tasks, _, _, _, _ := newDepositFixture(t)
	task := tasks.addTask(uuid.New(), models.TaskStatusDraft, 1000)

	_, err := svc.Initiate(context.Background(), Actor{ID: uuid.New(), Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestDepositService_InitiateTwiceWhileProcessing(t *testing.T) {
	svc, tasks, _, _, _, _ := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)
	actor := Actor{ID: clientID, Role: models.RoleClient}
	in := InitiateInput{TaskID: task.ID, PaymentMethod: models.PaymentMethodMpesa, PhoneNumber: "0712345678"}

	_, err := svc.Initiate(ctx, actor, in)
	require.NoError(t, err)

	_, err = svc.Initiate(ctx, actor, in)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeDuplicatePending))
}

func TestDepositService_CallbackConfirmsAndHolds(t *testing.T) {
	svc, tasks, deposits, ledger, _, notifier := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)
	_, err := svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	require.NoError(t, err)

	err = svc.HandleCallback(ctx, &gateway.CallbackResult{
		ExternalReference: "ws_CO_1",
		Success:           true,
		Receipt:           "SBH12XYZ",
	})
	require.NoError(t, err)

	deposit, err := deposits.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusConfirmed, deposit.PaymentStatus)

	// Задача опубликована, средства удержаны.
	updated, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusOpen, updated.Status)

	transaction, err := ledger.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, transaction.EscrowStatus)
	assert.Equal(t, 500.0, transaction.Amount)

	assert.True(t, notifier.has("deposit.confirmed"))
}

func TestDepositService_CallbackIsIdempotent(t *testing.T) {
	svc, tasks, _, ledger, _, _ := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)
	_, err := svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	require.NoError(t, err)

	callback := &gateway.CallbackResult{ExternalReference: "ws_CO_1", Success: true}
	require.NoError(t, svc.HandleCallback(ctx, callback))
	require.NoError(t, svc.HandleCallback(ctx, callback))

	assert.Len(t, ledger.transactions, 1)
}

func TestDepositService_CallbackFailure(t *testing.T) {
	svc, tasks, deposits, _, _, notifier := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)
	_, err := svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	require.NoError(t, err)

	err = svc.HandleCallback(ctx, &gateway.CallbackResult{
		ExternalReference: "ws_CO_1",
		Success:           false,
		FailureReason:     "Request cancelled by user",
	})
	require.NoError(t, err)

	deposit, err := deposits.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusFailed, deposit.PaymentStatus)

	// Задача остаётся черновиком, можно инициировать оплату заново.
	updated, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDraft, updated.Status)

	assert.True(t, notifier.has("deposit.failed"))

	_, err = svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	assert.NoError(t, err)
}

func TestDepositService_CallbackReferenceMismatch(t *testing.T) {
	svc, tasks, deposits, ledger, _, _ := newDepositFixture(t)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)
	_, err := svc.Initiate(ctx, Actor{ID: clientID, Role: models.RoleClient}, InitiateInput{
		TaskID:        task.ID,
		PaymentMethod: models.PaymentMethodMpesa,
		PhoneNumber:   "0712345678",
	})
	require.NoError(t, err)

	// Хранимая ссылка сменилась между выборкой и подтверждением
	// (переинициация платежа): колбэк со старой ссылкой отклоняется.
	deposits.confirmErr = repository.ErrDepositReferenceMismatch
	err = svc.HandleCallback(ctx, &gateway.CallbackResult{
		ExternalReference: "ws_CO_1",
		Success:           true,
	})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeReferenceMismatch))

	// Депозит не подтверждён, задача не опубликована, средства не удержаны.
	deposit, err := deposits.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusProcessing, deposit.PaymentStatus)

	current, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDraft, current.Status)
	assert.Empty(t, ledger.transactions)

	// Подтверждение с чужой ссылкой отклоняется и на уровне хранилища.
	_, err = deposits.Confirm(ctx, task.ID, "ws_CO_2")
	assert.ErrorIs(t, err, repository.ErrDepositReferenceMismatch)
}

func TestDepositService_CallbackUnknownReference(t *testing.T) {
	svc, _, _, _, _, _ := newDepositFixture(t)

	err := svc.HandleCallback(context.Background(), &gateway.CallbackResult{
		ExternalReference: "ws_CO_unknown",
		Success:           true,
	})
	assert.True(t, apperror.IsNotFound(err))
}
