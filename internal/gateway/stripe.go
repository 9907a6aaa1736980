package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kaziflow/backend/internal/money"
)

// StripeConfig — настройки подключения к Stripe API.
type StripeConfig struct {
	BaseURL   string
	SecretKey string
}

// StripeGateway создаёт payment intent и разбирает события Stripe.
type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

// NewStripeGateway создаёт шлюз Stripe.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name возвращает имя способа оплаты.
func (g *StripeGateway) Name() string { return "stripe" }

type stripeIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Initiate создаёт payment intent. Идентификатор интента служит внешней
// ссылкой платежа, client_secret возвращается клиенту для подтверждения.
func (g *StripeGateway) Initiate(ctx context.Context, req InitiateRequest) (*PaymentHandle, error) {
	currency := req.Currency
	if currency == "" {
		currency = "kes"
	}

	form := url.Values{}
	// Stripe принимает суммы в минимальных единицах валюты.
	form.Set("amount", strconv.FormatInt(money.MinorUnits(req.Amount), 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("description", req.Description)
	form.Set("metadata[kind]", req.Kind)
	form.Set("metadata[reference_id]", req.ReferenceID.String())

	endpoint := g.cfg.BaseURL + "/v1/payment_intents"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: build intent request %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stripe: request intent %w", err)
	}
	defer resp.Body.Close()

	var intent stripeIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("stripe: decode intent response %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := "unexpected status " + strconv.Itoa(resp.StatusCode)
		if intent.Error != nil {
			message = intent.Error.Message
		}
		return nil, fmt.Errorf("stripe: create intent failed: %s", message)
	}

	return &PaymentHandle{
		ExternalReference: intent.ID,
		ClientAction:      intent.ClientSecret,
	}, nil
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			Status           string `json:"status"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
			LatestCharge string `json:"latest_charge"`
		} `json:"object"`
	} `json:"data"`
}

// ParseCallback разбирает webhook-событие Stripe. Успехом считается
// payment_intent.succeeded, неуспехом — payment_intent.payment_failed.
func (g *StripeGateway) ParseCallback(body []byte) (*CallbackResult, error) {
	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("stripe: unmarshal event %w", err)
	}

	object := event.Data.Object
	if object.ID == "" {
		return nil, fmt.Errorf("stripe: event without intent id")
	}

	result := &CallbackResult{
		ExternalReference: object.ID,
		Receipt:           object.LatestCharge,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		result.Success = true
	case "payment_intent.payment_failed":
		result.Success = false
		if object.LastPaymentError != nil {
			result.FailureReason = object.LastPaymentError.Message
		}
	default:
		return nil, fmt.Errorf("stripe: unsupported event type %s", event.Type)
	}

	return result, nil
}
