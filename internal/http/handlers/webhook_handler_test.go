package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kaziflow/backend/internal/gateway"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// callbackStub отвечает на колбэк заранее заданной ошибкой.
type callbackStub struct {
	err   error
	calls int
}

func (s *callbackStub) HandleCallback(ctx context.Context, result *gateway.CallbackResult) error {
	s.calls++
	return s.err
}

const mpesaSuccessBody = `{
	"Body": {
		"stkCallback": {
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {"Item": [{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"}]}
		}
	}
}`

func newWebhookRouter(deposits, bidFees CallbackWorkflow) *gin.Engine {
	registry := gateway.NewRegistry(
		gateway.NewMpesaGateway(gateway.MpesaConfig{}),
		gateway.NewStripeGateway(gateway.StripeConfig{}),
	)
	handler := NewWebhookHandler(registry, deposits, bidFees)

	r := gin.New()
	r.POST("/webhooks/:gateway", handler.Handle)
	return r
}

func TestWebhookHandler_UnknownGateway(t *testing.T) {
	r := newWebhookRouter(&callbackStub{}, &callbackStub{})

	req, _ := http.NewRequest("POST", "/webhooks/paypal", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_UnparseableBody(t *testing.T) {
	r := newWebhookRouter(&callbackStub{}, &callbackStub{})

	req, _ := http.NewRequest("POST", "/webhooks/mpesa", strings.NewReader(`not json at all`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_CrossGatewayBody(t *testing.T) {
	r := newWebhookRouter(&callbackStub{}, &callbackStub{})

	// Stripe-образный колбэк на адрес M-Pesa не должен пройти парсинг.
	req, _ := http.NewRequest("POST", "/webhooks/mpesa", strings.NewReader(`{"type":"payment_intent.succeeded"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_FallsThroughToDeposits(t *testing.T) {
	deposits := &callbackStub{}
	bidFees := &callbackStub{err: apperror.New(apperror.ErrCodeNotFound, "платёж комиссии не найден")}
	r := newWebhookRouter(deposits, bidFees)

	req, _ := http.NewRequest("POST", "/webhooks/mpesa", strings.NewReader(mpesaSuccessBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, bidFees.calls)
	assert.Equal(t, 1, deposits.calls)
}

func TestWebhookHandler_ProcessingErrorTriggersRedelivery(t *testing.T) {
	// Сбой обработки валидного колбэка должен вернуть 5xx: шлюз ретраит
	// доставку, а обработчики идемпотентны.
	deposits := &callbackStub{}
	bidFees := &callbackStub{err: errors.New("pq: connection refused")}
	r := newWebhookRouter(deposits, bidFees)

	req, _ := http.NewRequest("POST", "/webhooks/mpesa", strings.NewReader(mpesaSuccessBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// Ошибка комиссии не маскируется попыткой обработать как депозит.
	assert.Equal(t, 0, deposits.calls)
}

func TestWebhookHandler_UnknownReferenceAcknowledged(t *testing.T) {
	notFound := apperror.New(apperror.ErrCodeNotFound, "не найден")
	deposits := &callbackStub{err: notFound}
	bidFees := &callbackStub{err: notFound}
	r := newWebhookRouter(deposits, bidFees)

	req, _ := http.NewRequest("POST", "/webhooks/mpesa", strings.NewReader(mpesaSuccessBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Чужая ссылка: ретраить бессмысленно, отвечаем 200.
	assert.Equal(t, http.StatusOK, w.Code)
}
