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
)

func newBidFeeFixture(t *testing.T) (*BidFeeService, *fakeTaskRepo, *fakeBidFeeRepo, *fakeGateway, *recordingNotifier) {
	t.Helper()

	tasks := newFakeTaskRepo()
	payments := newFakeBidFeeRepo()
	mpesa := &fakeGateway{
		name:   models.PaymentMethodMpesa,
		handle: gateway.PaymentHandle{ExternalReference: "ws_CO_77", ClientAction: "Введите PIN на телефоне"},
	}
	notifier := &recordingNotifier{}
	svc := NewBidFeeService(payments, tasks, gateway.NewRegistry(mpesa), 55, notifier)

	return svc, tasks, payments, mpesa, notifier
}

func TestBidFeeService_InitiateSendsStkPush(t *testing.T) {
	svc, tasks, _, mpesa, _ := newBidFeeFixture(t)
	ctx := context.Background()

	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}

	result, err := svc.Initiate(ctx, freelancer, InitiateBidFeeInput{
		TaskID:      task.ID,
		PhoneNumber: "0712345678",
	})
	require.NoError(t, err)

	assert.Equal(t, 55.0, result.Payment.Amount)
	assert.Equal(t, "254712345678", result.Payment.PhoneNumber)
	require.NotNil(t, result.Payment.CheckoutRequestID)
	assert.Equal(t, "ws_CO_77", *result.Payment.CheckoutRequestID)

	require.Len(t, mpesa.initiated, 1)
	assert.Equal(t, "bid_fee", mpesa.initiated[0].Kind)
	assert.Equal(t, 55.0, mpesa.initiated[0].Amount)
}

func TestBidFeeService_InitiateRequiresFreelancer(t *testing.T) {
	svc, tasks, _, _, _ := newBidFeeFixture(t)
	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)

	_, err := svc.Initiate(context.Background(), Actor{ID: uuid.New(), Role: models.RoleClient}, InitiateBidFeeInput{
		TaskID:      task.ID,
		PhoneNumber: "0712345678",
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidFeeService_InitiateDuplicatePending(t *testing.T) {
	svc, tasks, _, _, _ := newBidFeeFixture(t)
	ctx := context.Background()

	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}
	in := InitiateBidFeeInput{TaskID: task.ID, PhoneNumber: "0712345678"}

	_, err := svc.Initiate(ctx, freelancer, in)
	require.NoError(t, err)

	_, err = svc.Initiate(ctx, freelancer, in)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeDuplicatePending))
}

func TestBidFeeService_CallbackCompletesPayment(t *testing.T) {
	svc, tasks, payments, _, notifier := newBidFeeFixture(t)
	ctx := context.Background()

	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}

	result, err := svc.Initiate(ctx, freelancer, InitiateBidFeeInput{TaskID: task.ID, PhoneNumber: "0712345678"})
	require.NoError(t, err)

	callback := &gateway.CallbackResult{ExternalReference: "ws_CO_77", Success: true, Receipt: "SBH12XYZ"}
	require.NoError(t, svc.HandleCallback(ctx, callback))

	payment, err := payments.GetByID(ctx, result.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidFeeStatusCompleted, payment.Status)
	require.NotNil(t, payment.Receipt)
	assert.Equal(t, "SBH12XYZ", *payment.Receipt)

	canBid, err := svc.CanSubmitBid(ctx, freelancer.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, canBid)

	assert.True(t, notifier.has("bid_fee.completed"))

	// Повторная доставка колбэка безопасна.
	require.NoError(t, svc.HandleCallback(ctx, callback))
}

func TestBidFeeService_FailureAfterCompletionIsNoop(t *testing.T) {
	svc, tasks, payments, _, _ := newBidFeeFixture(t)
	ctx := context.Background()

	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}

	result, err := svc.Initiate(ctx, freelancer, InitiateBidFeeInput{TaskID: task.ID, PhoneNumber: "0712345678"})
	require.NoError(t, err)

	require.NoError(t, svc.HandleCallback(ctx, &gateway.CallbackResult{ExternalReference: "ws_CO_77", Success: true}))
	require.NoError(t, svc.HandleCallback(ctx, &gateway.CallbackResult{ExternalReference: "ws_CO_77", Success: false}))

	payment, err := payments.GetByID(ctx, result.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidFeeStatusCompleted, payment.Status)
}

func TestBidFeeService_CallbackUnknownReference(t *testing.T) {
	svc, _, _, _, _ := newBidFeeFixture(t)

	err := svc.HandleCallback(context.Background(), &gateway.CallbackResult{ExternalReference: "ws_CO_missing", Success: false})
	assert.True(t, apperror.IsNotFound(err))
}

func TestBidFeeService_InitiateClosedTask(t *testing.T) {
	svc, tasks, _, _, _ := newBidFeeFixture(t)
	task := tasks.addTask(uuid.New(), models.TaskStatusInProgress, 1000)

	_, err := svc.Initiate(context.Background(), Actor{ID: uuid.New(), Role: models.RoleFreelancer}, InitiateBidFeeInput{
		TaskID:      task.ID,
		PhoneNumber: "0712345678",
	})
	assert.True(t, apperror.IsConflict(err))
}
