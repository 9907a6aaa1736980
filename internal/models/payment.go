package models

import (
	"time"

	"github.com/google/uuid"
)

// Способы оплаты.
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodMpesa  = "mpesa"
)

// Статусы депозита за размещение задачи.
const (
	DepositStatusPending    = "pending"
	DepositStatusProcessing = "processing"
	DepositStatusConfirmed  = "confirmed"
	DepositStatusFailed     = "failed"
)

// Статусы комиссии за отклик.
const (
	BidFeeStatusPending   = "pending"
	BidFeeStatusCompleted = "completed"
	BidFeeStatusFailed    = "failed"
)

// Статусы escrow по транзакции. Транзакция создаётся сразу удержанной:
// до подтверждения депозита записи в ledger нет.
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// Статусы заявки на вывод средств.
const (
	WithdrawalStatusRequested  = "requested"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
)

// TaskDeposit — предоплата 50% бюджета, без которой задача не публикуется.
type TaskDeposit struct {
	ID                uuid.UUID `db:"id" json:"id"`
	TaskID            uuid.UUID `db:"task_id" json:"task_id"`
	ClientID          uuid.UUID `db:"client_id" json:"client_id"`
	DepositAmount     float64   `db:"deposit_amount" json:"deposit_amount"`
	OriginalBudget    float64   `db:"original_budget" json:"original_budget"`
	PaymentMethod     *string   `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus     string    `db:"payment_status" json:"payment_status"`
	ExternalReference *string   `db:"external_reference" json:"external_reference,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// BidFeePayment — фиксированная комиссия, открывающая фрилансеру отклик на задачу.
type BidFeePayment struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	TaskID            uuid.UUID `db:"task_id" json:"task_id"`
	Amount            float64   `db:"amount" json:"amount"`
	PhoneNumber       string    `db:"phone_number" json:"phone_number"`
	CheckoutRequestID *string   `db:"checkout_request_id" json:"checkout_request_id,omitempty"`
	Receipt           *string   `db:"receipt" json:"receipt,omitempty"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Wallet представляет кошелёк пользователя. Создаётся лениво при первом
// событии, затрагивающем баланс.
type Wallet struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	AvailableBalance float64   `db:"available_balance" json:"available_balance"`
	PendingBalance   float64   `db:"pending_balance" json:"pending_balance"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction — движение средств по задаче. Единственное изменяемое поле —
// escrow_status.
type Transaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TaskID        uuid.UUID  `db:"task_id" json:"task_id"`
	PayerID       uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID       *uuid.UUID `db:"payee_id" json:"payee_id,omitempty"`
	Amount        float64    `db:"amount" json:"amount"`
	PlatformFee   float64    `db:"platform_fee" json:"platform_fee"`
	PaymentMethod string     `db:"payment_method" json:"payment_method"`
	EscrowStatus  string     `db:"escrow_status" json:"escrow_status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ReleasedAt    *time.Time `db:"released_at" json:"released_at,omitempty"`
}

// Withdrawal — заявка на вывод средств с кошелька.
type Withdrawal struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Amount      float64    `db:"amount" json:"amount"`
	Method      string     `db:"method" json:"method"`
	Destination string     `db:"destination" json:"destination"`
	Status      string     `db:"status" json:"status"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
