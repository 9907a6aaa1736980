package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

// MpesaConfig — настройки подключения к Daraja API.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

// MpesaGateway инициирует STK push и разбирает колбэки Daraja.
type MpesaGateway struct {
	cfg    MpesaConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMpesaGateway создаёт шлюз M-Pesa.
func NewMpesaGateway(cfg MpesaConfig) *MpesaGateway {
	return &MpesaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name возвращает имя способа оплаты.
func (g *MpesaGateway) Name() string { return "mpesa" }

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// token возвращает действующий OAuth-токен, запрашивая новый при истечении.
func (g *MpesaGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	url := g.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: build token request %w", err)
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: request token %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token request failed with status %d", resp.StatusCode)
	}

	var tokenResp mpesaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("mpesa: decode token response %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("mpesa: empty access token")
	}

	g.accessToken = tokenResp.AccessToken
	// expires_in приходит строкой, обычно "3599". Обновляем с запасом.
	g.tokenExpiry = time.Now().Add(50 * time.Minute)

	return g.accessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Initiate отправляет STK push на телефон плательщика. Возвращённый
// CheckoutRequestID служит внешней ссылкой платежа.
func (g *MpesaGateway) Initiate(ctx context.Context, req InitiateRequest) (*PaymentHandle, error) {
	accessToken, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(g.cfg.Shortcode + g.cfg.Passkey + timestamp),
	)

	payload := stkPushRequest{
		BusinessShortCode: g.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		// Daraja принимает только целые суммы, округляем вверх.
		Amount:           int64(math.Ceil(req.Amount)),
		PartyA:           req.PhoneNumber,
		PartyB:           g.cfg.Shortcode,
		PhoneNumber:      req.PhoneNumber,
		CallBackURL:      g.cfg.CallbackURL,
		AccountReference: req.ReferenceID.String(),
		TransactionDesc:  req.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mpesa: marshal stk push %w", err)
	}

	url := g.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mpesa: build stk push request %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mpesa: request stk push %w", err)
	}
	defer resp.Body.Close()

	var stkResp stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&stkResp); err != nil {
		return nil, fmt.Errorf("mpesa: decode stk push response %w", err)
	}

	if resp.StatusCode != http.StatusOK || stkResp.ResponseCode != "0" {
		return nil, fmt.Errorf("mpesa: stk push rejected: %s", stkResp.ResponseDescription)
	}

	return &PaymentHandle{
		ExternalReference: stkResp.CheckoutRequestID,
		ClientAction:      stkResp.CustomerMessage,
	}, nil
}

type stkCallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

type stkCallbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []stkCallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback разбирает колбэк STK push. ResultCode == 0 означает успех,
// номер квитанции приходит в метаданных как MpesaReceiptNumber.
func (g *MpesaGateway) ParseCallback(body []byte) (*CallbackResult, error) {
	var callback stkCallbackBody
	if err := json.Unmarshal(body, &callback); err != nil {
		return nil, fmt.Errorf("mpesa: unmarshal callback %w", err)
	}

	stk := callback.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa: callback without checkout request id")
	}

	result := &CallbackResult{
		ExternalReference: stk.CheckoutRequestID,
		Success:           stk.ResultCode == 0,
		FailureReason:     stk.ResultDesc,
	}

	if result.Success {
		for _, item := range stk.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" {
				if receipt, ok := item.Value.(string); ok {
					result.Receipt = receipt
				}
			}
		}
	}

	return result, nil
}
