package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskTransitions(t *testing.T) {
	assert.True(t, CanTransitionTask(TaskStatusDraft, TaskStatusOpen))
	assert.True(t, CanTransitionTask(TaskStatusDraft, TaskStatusCancelled))
	assert.True(t, CanTransitionTask(TaskStatusOpen, TaskStatusInProgress))
	assert.True(t, CanTransitionTask(TaskStatusInProgress, TaskStatusCompleted))

	assert.False(t, CanTransitionTask(TaskStatusDraft, TaskStatusInProgress))
	assert.False(t, CanTransitionTask(TaskStatusCompleted, TaskStatusOpen))
	assert.False(t, CanTransitionTask(TaskStatusCancelled, TaskStatusOpen))
}

func TestDepositTransitions(t *testing.T) {
	assert.True(t, CanTransitionDeposit(DepositStatusPending, DepositStatusProcessing))
	assert.True(t, CanTransitionDeposit(DepositStatusProcessing, DepositStatusConfirmed))
	// Неуспешный платёж можно оплатить заново.
	assert.True(t, CanTransitionDeposit(DepositStatusFailed, DepositStatusPending))

	assert.False(t, CanTransitionDeposit(DepositStatusConfirmed, DepositStatusPending))
	assert.False(t, CanTransitionDeposit(DepositStatusConfirmed, DepositStatusFailed))
}

func TestEscrowTransitions(t *testing.T) {
	assert.True(t, CanTransitionEscrow(EscrowStatusHeld, EscrowStatusReleased))
	assert.True(t, CanTransitionEscrow(EscrowStatusHeld, EscrowStatusRefunded))

	assert.False(t, CanTransitionEscrow(EscrowStatusReleased, EscrowStatusRefunded))
	assert.False(t, CanTransitionEscrow(EscrowStatusRefunded, EscrowStatusReleased))
}

func TestWithdrawalTransitions(t *testing.T) {
	assert.True(t, CanTransitionWithdrawal(WithdrawalStatusRequested, WithdrawalStatusProcessing))
	assert.True(t, CanTransitionWithdrawal(WithdrawalStatusProcessing, WithdrawalStatusFailed))

	assert.False(t, CanTransitionWithdrawal(WithdrawalStatusCompleted, WithdrawalStatusFailed))
	assert.False(t, CanTransitionWithdrawal(WithdrawalStatusFailed, WithdrawalStatusRequested))
}

func TestBidTransitions(t *testing.T) {
	assert.True(t, CanTransitionBid(BidStatusPending, BidStatusAccepted))
	assert.True(t, CanTransitionBid(BidStatusPending, BidStatusCancelled))
	assert.False(t, CanTransitionBid(BidStatusAccepted, BidStatusCancelled))
}
