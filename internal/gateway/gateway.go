package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownGateway возвращается, когда способ оплаты не зарегистрирован.
var ErrUnknownGateway = errors.New("unknown payment gateway")

// InitiateRequest описывает запрос на инициацию платежа.
type InitiateRequest struct {
	// Kind различает назначение платежа в метаданных шлюза.
	Kind        string
	ReferenceID uuid.UUID
	Amount      float64
	Currency    string
	PhoneNumber string
	Description string
}

// PaymentHandle — результат инициации: внешняя ссылка, по которой
// колбэк шлюза будет сопоставлен с платежом.
type PaymentHandle struct {
	ExternalReference string
	// ClientAction содержит данные для клиента (client_secret, инструкция
	// подтвердить STK push и т.п.), если шлюз их возвращает.
	ClientAction string
}

// CallbackResult — распарсенный колбэк шлюза.
type CallbackResult struct {
	ExternalReference string
	Success           bool
	Receipt           string
	FailureReason     string
}

// Gateway абстрагирует внешний платёжный шлюз. Реализации не трогают базу:
// сопоставление колбэков с платежами — забота сервисов.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*PaymentHandle, error)
	ParseCallback(body []byte) (*CallbackResult, error)
}
