package dto

import "time"

// RegisterRequest — запрос регистрации.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
}

// LoginRequest — запрос входа.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest — запрос обновления пары токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateTaskRequest — запрос создания задачи.
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description" binding:"required"`
	Budget      float64    `json:"budget" binding:"required,gt=0"`
	Deadline    *time.Time `json:"deadline"`
}

// InitiateDepositRequest — запрос на оплату депозита за размещение задачи.
type InitiateDepositRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	PhoneNumber   string `json:"phone_number"`
}

// InitiateBidFeeRequest — запрос на оплату комиссии за отклик.
type InitiateBidFeeRequest struct {
	TaskID      string `json:"task_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// SubmitBidRequest — запрос подачи отклика.
type SubmitBidRequest struct {
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	Proposal string  `json:"proposal" binding:"required"`
}

// WithdrawalRequest — заявка на вывод средств.
type WithdrawalRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Method      string  `json:"method" binding:"required"`
	Destination string  `json:"destination" binding:"required"`
}
