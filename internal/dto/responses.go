package dto

import (
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/service"
)

// ErrorResponse — стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse — стандартный ответ с сообщением и данными.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse — ответ регистрации и входа.
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// PaymentInitiatedResponse — ответ на инициацию платежа: клиенту может
// понадобиться подтвердить STK push или завершить оплату по client_secret.
type PaymentInitiatedResponse struct {
	Deposit      *models.TaskDeposit   `json:"deposit,omitempty"`
	BidFee       *models.BidFeePayment `json:"bid_fee,omitempty"`
	ClientAction string                `json:"client_action,omitempty"`
}

// WalletResponse — кошелёк с последними транзакциями.
type WalletResponse struct {
	Wallet       *models.Wallet       `json:"wallet"`
	Transactions []models.Transaction `json:"transactions,omitempty"`
}
