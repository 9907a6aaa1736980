package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeGateway_Initiate(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"amount":                 r.PostForm.Get("amount"),
			"currency":               r.PostForm.Get("currency"),
			"metadata[kind]":         r.PostForm.Get("metadata[kind]"),
			"metadata[reference_id]": r.PostForm.Get("metadata[reference_id]"),
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":            "pi_3MtwBwLkdIwHu7ix28a3tqPa",
			"client_secret": "pi_3MtwBw_secret_YrKJUKribcBjcG8HVhfZluoGH",
			"status":        "requires_payment_method",
		})
	}))
	defer server.Close()

	g := NewStripeGateway(StripeConfig{BaseURL: server.URL, SecretKey: "sk_test_123"})

	refID := uuid.New()
	handle, err := g.Initiate(context.Background(), InitiateRequest{
		Kind:        "task_deposit",
		ReferenceID: refID,
		Amount:      166.67,
		Description: "Депозит за размещение задачи",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_3MtwBwLkdIwHu7ix28a3tqPa", handle.ExternalReference)
	assert.Equal(t, "pi_3MtwBw_secret_YrKJUKribcBjcG8HVhfZluoGH", handle.ClientAction)

	// Сумма в минимальных единицах валюты.
	assert.Equal(t, "16667", form["amount"])
	assert.Equal(t, "kes", form["currency"])
	assert.Equal(t, "task_deposit", form["metadata[kind]"])
	assert.Equal(t, refID.String(), form["metadata[reference_id]"])
}

func TestStripeGateway_InitiateRoundsMinorUnits(t *testing.T) {
	var amount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		amount = r.PostForm.Get("amount")
		json.NewEncoder(w).Encode(map[string]string{"id": "pi_1", "client_secret": "pi_1_secret"})
	}))
	defer server.Close()

	g := NewStripeGateway(StripeConfig{BaseURL: server.URL, SecretKey: "sk_test_123"})

	// 19.99*100 во float64 равно 1998.9999..., усечение занизило бы списание.
	_, err := g.Initiate(context.Background(), InitiateRequest{ReferenceID: uuid.New(), Amount: 19.99})
	require.NoError(t, err)
	assert.Equal(t, "1999", amount)
}

func TestStripeGateway_InitiateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "Your card was declined."},
		})
	}))
	defer server.Close()

	g := NewStripeGateway(StripeConfig{BaseURL: server.URL, SecretKey: "sk_test_123"})

	_, err := g.Initiate(context.Background(), InitiateRequest{ReferenceID: uuid.New(), Amount: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declined")
}

func TestStripeGateway_ParseCallbackSucceeded(t *testing.T) {
	body := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "status": "succeeded", "latest_charge": "ch_456"}}
	}`)

	g := NewStripeGateway(StripeConfig{})
	result, err := g.ParseCallback(body)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "pi_123", result.ExternalReference)
	assert.Equal(t, "ch_456", result.Receipt)
}

func TestStripeGateway_ParseCallbackFailed(t *testing.T) {
	body := []byte(`{
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_123", "last_payment_error": {"message": "Your card was declined."}}}
	}`)

	g := NewStripeGateway(StripeConfig{})
	result, err := g.ParseCallback(body)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Your card was declined.", result.FailureReason)
}

func TestStripeGateway_ParseCallbackUnsupportedEvent(t *testing.T) {
	body := []byte(`{
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_123"}}
	}`)

	g := NewStripeGateway(StripeConfig{})
	_, err := g.ParseCallback(body)
	assert.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	mpesa := NewMpesaGateway(MpesaConfig{})
	stripe := NewStripeGateway(StripeConfig{})
	registry := NewRegistry(mpesa, stripe)

	g, err := registry.Resolve("mpesa")
	require.NoError(t, err)
	assert.Equal(t, "mpesa", g.Name())

	_, err = registry.Resolve("paypal")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}
