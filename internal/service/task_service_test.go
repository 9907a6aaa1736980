package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// feeStub отвечает на вопрос об оплате комиссии константой.
type feeStub struct{ paid bool }

func (f feeStub) CanSubmitBid(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	return f.paid, nil
}

func newTaskFixture(t *testing.T, feePaid bool) (*TaskService, *fakeTaskRepo, *fakeLedger, *recordingNotifier) {
	t.Helper()

	tasks := newFakeTaskRepo()
	ledger := newFakeLedger()
	notifier := &recordingNotifier{}
	escrow := NewEscrowService(ledger, 10, notifier)
	svc := NewTaskService(tasks, feeStub{paid: feePaid}, escrow, notifier)

	return svc, tasks, ledger, notifier
}

func TestTaskService_CreateTaskStartsAsDraft(t *testing.T) {
	svc, _, _, _ := newTaskFixture(t, true)
	ctx := context.Background()

	deadline := time.Now().Add(72 * time.Hour)
	task, err := svc.CreateTask(ctx, Actor{ID: uuid.New(), Role: models.RoleClient}, CreateTaskInput{
		Title:       "Сверстать лендинг",
		Description: "Нужна адаптивная вёрстка по макету в Figma",
		Budget:      1000,
		Deadline:    &deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDraft, task.Status)
}

func TestTaskService_CreateTaskRejectsFreelancer(t *testing.T) {
	svc, _, _, _ := newTaskFixture(t, true)

	_, err := svc.CreateTask(context.Background(), Actor{ID: uuid.New(), Role: models.RoleFreelancer}, CreateTaskInput{
		Title:       "Сверстать лендинг",
		Description: "Нужна адаптивная вёрстка по макету в Figma",
		Budget:      1000,
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestTaskService_CreateTaskPastDeadline(t *testing.T) {
	svc, _, _, _ := newTaskFixture(t, true)

	past := time.Now().Add(-time.Hour)
	_, err := svc.CreateTask(context.Background(), Actor{ID: uuid.New(), Role: models.RoleClient}, CreateTaskInput{
		Title:       "Сверстать лендинг",
		Description: "Нужна адаптивная вёрстка по макету в Figma",
		Budget:      1000,
		Deadline:    &past,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestTaskService_DraftHiddenFromOthers(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)

	_, err := svc.GetTask(ctx, Actor{ID: uuid.New(), Role: models.RoleFreelancer}, task.ID)
	assert.True(t, apperror.IsNotFound(err))

	got, err := svc.GetTask(ctx, Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestTaskService_SubmitBidRequiresPaidFee(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, false)
	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)

	_, err := svc.SubmitBid(context.Background(), Actor{ID: uuid.New(), Role: models.RoleFreelancer}, task.ID, 400, "Сделаю за два дня, опыт есть")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeFeeNotPaid))
}

func TestTaskService_SubmitBidOwnTask(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)

	_, err := svc.SubmitBid(context.Background(), Actor{ID: clientID, Role: models.RoleFreelancer}, task.ID, 400, "Сделаю за два дня, опыт есть")
	assert.True(t, apperror.IsForbidden(err))
}

func TestTaskService_SubmitBidDuplicate(t *testing.T) {
	svc, tasks, _, notifier := newTaskFixture(t, true)
	ctx := context.Background()

	task := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	freelancer := Actor{ID: uuid.New(), Role: models.RoleFreelancer}

	_, err := svc.SubmitBid(ctx, freelancer, task.ID, 400, "Сделаю за два дня, опыт есть")
	require.NoError(t, err)
	assert.True(t, notifier.has("bid.created"))

	_, err = svc.SubmitBid(ctx, freelancer, task.ID, 450, "Передумал, сделаю дороже")
	assert.True(t, apperror.IsConflict(err))
}

func TestTaskService_AcceptBidRejectsOthers(t *testing.T) {
	svc, tasks, _, notifier := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)
	winner := tasks.addBid(task.ID, uuid.New(), models.BidStatusPending)
	loser := tasks.addBid(task.ID, uuid.New(), models.BidStatusPending)

	accepted, err := svc.AcceptBid(ctx, Actor{ID: clientID, Role: models.RoleClient}, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusAccepted, accepted.Status)

	updated, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)
	require.NotNil(t, updated.AcceptedBidID)
	assert.Equal(t, winner.ID, *updated.AcceptedBidID)

	rejected, err := tasks.GetBidByID(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, rejected.Status)

	assert.True(t, notifier.has("bid.accepted"))
}

func TestTaskService_AcceptBidConflicts(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	actor := Actor{ID: clientID, Role: models.RoleClient}

	// Отклик уже обработан.
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)
	handled := tasks.addBid(task.ID, uuid.New(), models.BidStatusRejected)
	_, err := svc.AcceptBid(ctx, actor, handled.ID)
	assert.True(t, apperror.IsConflict(err))

	// Задача уже не открыта.
	closed := tasks.addTask(clientID, models.TaskStatusInProgress, 1000)
	pending := tasks.addBid(closed.ID, uuid.New(), models.BidStatusPending)
	_, err = svc.AcceptBid(ctx, actor, pending.ID)
	assert.True(t, apperror.IsConflict(err))

	// Чужую задачу принять нельзя.
	foreign := tasks.addTask(uuid.New(), models.TaskStatusOpen, 1000)
	foreignBid := tasks.addBid(foreign.ID, uuid.New(), models.BidStatusPending)
	_, err = svc.AcceptBid(ctx, Actor{ID: uuid.New(), Role: models.RoleClient}, foreignBid.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestTaskService_CompleteTaskReleasesEscrow(t *testing.T) {
	svc, tasks, ledger, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()

	task := tasks.addTask(clientID, models.TaskStatusInProgress, 1000)
	bid := tasks.addBid(task.ID, freelancerID, models.BidStatusAccepted)
	tasks.tasks[task.ID].AcceptedBidID = &bid.ID

	_, err := ledger.Hold(ctx, task.ID, clientID, 500, models.PaymentMethodMpesa)
	require.NoError(t, err)

	completed, err := svc.CompleteTask(ctx, Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)

	wallet, err := ledger.GetWallet(ctx, freelancerID)
	require.NoError(t, err)
	assert.Equal(t, 450.0, wallet.AvailableBalance)
}

func TestTaskService_CompleteTaskRetriesAfterReleaseFailure(t *testing.T) {
	svc, tasks, ledger, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()

	task := tasks.addTask(clientID, models.TaskStatusInProgress, 1000)
	bid := tasks.addBid(task.ID, freelancerID, models.BidStatusAccepted)
	tasks.tasks[task.ID].AcceptedBidID = &bid.ID

	_, err := ledger.Hold(ctx, task.ID, clientID, 500, models.PaymentMethodMpesa)
	require.NoError(t, err)

	// Сбой выплаты не должен трогать статус задачи, иначе удержанные
	// средства останутся без пути выплаты.
	ledger.releaseErr = errors.New("db down")
	actor := Actor{ID: clientID, Role: models.RoleClient}
	_, err = svc.CompleteTask(ctx, actor, task.ID)
	require.Error(t, err)

	current, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, current.Status)

	// Повторное завершение доводит операцию до конца.
	completed, err := svc.CompleteTask(ctx, actor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)

	wallet, err := ledger.GetWallet(ctx, freelancerID)
	require.NoError(t, err)
	assert.Equal(t, 450.0, wallet.AvailableBalance)
}

func TestTaskService_CompleteTaskNotInProgress(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)

	_, err := svc.CompleteTask(context.Background(), Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestTaskService_CancelOpenTaskRefundsEscrow(t *testing.T) {
	svc, tasks, ledger, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)
	_, err := ledger.Hold(ctx, task.ID, clientID, 500, models.PaymentMethodMpesa)
	require.NoError(t, err)

	cancelled, err := svc.CancelTask(ctx, Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, cancelled.Status)

	transaction, err := ledger.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, transaction.EscrowStatus)
}

func TestTaskService_CancelDraftWithoutEscrow(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusDraft, 1000)

	cancelled, err := svc.CancelTask(context.Background(), Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, cancelled.Status)
}

func TestTaskService_CancelCompletedTask(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	clientID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusCompleted, 1000)

	_, err := svc.CancelTask(context.Background(), Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	assert.True(t, apperror.IsConflict(err))
}

func TestTaskService_ListBidsVisibility(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture(t, true)
	ctx := context.Background()

	clientID := uuid.New()
	mineID := uuid.New()
	task := tasks.addTask(clientID, models.TaskStatusOpen, 1000)
	tasks.addBid(task.ID, mineID, models.BidStatusPending)
	tasks.addBid(task.ID, uuid.New(), models.BidStatusPending)

	all, err := svc.ListBids(ctx, Actor{ID: clientID, Role: models.RoleClient}, task.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := svc.ListBids(ctx, Actor{ID: mineID, Role: models.RoleFreelancer}, task.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mineID, own[0].FreelancerID)
}
