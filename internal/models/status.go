package models

// Допустимые переходы статусов. Любой переход, не указанный здесь,
// отклоняется на уровне сервисов до обращения к базе.

var taskTransitions = map[string][]string{
	TaskStatusDraft:      {TaskStatusOpen, TaskStatusCancelled},
	TaskStatusOpen:       {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
}

var bidTransitions = map[string][]string{
	BidStatusPending:   {BidStatusAccepted, BidStatusRejected, BidStatusCancelled},
	BidStatusAccepted:  {},
	BidStatusRejected:  {},
	BidStatusCancelled: {},
}

var depositTransitions = map[string][]string{
	DepositStatusPending:    {DepositStatusProcessing, DepositStatusConfirmed, DepositStatusFailed},
	DepositStatusProcessing: {DepositStatusConfirmed, DepositStatusFailed},
	DepositStatusConfirmed:  {},
	DepositStatusFailed:     {DepositStatusPending},
}

var bidFeeTransitions = map[string][]string{
	BidFeeStatusPending:   {BidFeeStatusCompleted, BidFeeStatusFailed},
	BidFeeStatusCompleted: {},
	BidFeeStatusFailed:    {},
}

var escrowTransitions = map[string][]string{
	EscrowStatusHeld:     {EscrowStatusReleased, EscrowStatusRefunded},
	EscrowStatusReleased: {},
	EscrowStatusRefunded: {},
}

var withdrawalTransitions = map[string][]string{
	WithdrawalStatusRequested:  {WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusFailed},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
	WithdrawalStatusCompleted:  {},
	WithdrawalStatusFailed:     {},
}

func canTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionTask проверяет допустимость перехода статуса задачи.
func CanTransitionTask(from, to string) bool { return canTransition(taskTransitions, from, to) }

// CanTransitionBid проверяет допустимость перехода статуса отклика.
func CanTransitionBid(from, to string) bool { return canTransition(bidTransitions, from, to) }

// CanTransitionDeposit проверяет допустимость перехода статуса депозита.
func CanTransitionDeposit(from, to string) bool { return canTransition(depositTransitions, from, to) }

// CanTransitionBidFee проверяет допустимость перехода статуса комиссии за отклик.
func CanTransitionBidFee(from, to string) bool { return canTransition(bidFeeTransitions, from, to) }

// CanTransitionEscrow проверяет допустимость перехода escrow-статуса.
func CanTransitionEscrow(from, to string) bool { return canTransition(escrowTransitions, from, to) }

// CanTransitionWithdrawal проверяет допустимость перехода статуса вывода.
func CanTransitionWithdrawal(from, to string) bool {
	return canTransition(withdrawalTransitions, from, to)
}
