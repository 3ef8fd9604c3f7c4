package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylab/payu-gateway/payment"
	"github.com/gatewaylab/payu-gateway/payu"
)

const testSecondKey = "test-second-key"

func testStore(t *testing.T) *payment.Store {
	t.Helper()
	store, err := payment.NewStore(filepath.Join(t.TempDir(), "payments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testProcessor builds a processor whose client points at gatewayURL. For
// handlers that never call out, any unreachable URL will do.
func testProcessor(gatewayURL string) *payu.Processor {
	client := payu.NewClient(payu.ClientConfig{
		APIURL:      gatewayURL,
		PosID:       "300746",
		OAuthID:     "client-id",
		OAuthSecret: "client-secret",
	})
	return payu.NewProcessor(client, payu.ProcessorConfig{
		SecondKey:   testSecondKey,
		NotifyURL:   "https://shop.example.com/webhooks/payu/{payment_id}",
		ContinueURL: "https://shop.example.com/return/{payment_id}",
	})
}

func webhookRouter(store *payment.Store, processor *payu.Processor) chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks/payu/{paymentID}", NewWebhookHandler(store, processor).HandleNotification)
	return r
}

func signBody(body []byte) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(testSecondKey))
	return "signature=" + hex.EncodeToString(h.Sum(nil)) + ";algorithm=SHA-256"
}

func TestWebhookAppliesVerifiedNotification(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, store.Save(pay))

	body := []byte(`{"order":{"orderId":"PAYU-ORDER-1","status":"COMPLETED"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
	req.Header.Set(payu.HeaderSignature, signBody(body))
	rec := httptest.NewRecorder()

	webhookRouter(store, processor).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, loaded.Status())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, store.Save(pay))

	body := []byte(`{"order":{"status":"COMPLETED"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
	req.Header.Set(payu.HeaderSignature, "signature=deadbeef;algorithm=SHA-256")
	rec := httptest.NewRecorder()

	webhookRouter(store, processor).ServeHTTP(rec, req)

	// Non-2xx makes the gateway retry; the payment must stay untouched.
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusNew, loaded.Status())
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, store.Save(pay))

	body := []byte(`{"order":{"status":"COMPLETED"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	webhookRouter(store, processor).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownPayment(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	body := []byte(`{"order":{"status":"COMPLETED"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/no-such", bytes.NewReader(body))
	req.Header.Set(payu.HeaderSignature, signBody(body))
	rec := httptest.NewRecorder()

	webhookRouter(store, processor).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRefundNotification(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, pay.Fire(payment.EventConfirmPayment))
	require.NoError(t, pay.Fire(payment.EventMarkAsPaid))
	require.NoError(t, store.Save(pay))

	body := []byte(`{"refund":{"refundId":"R1","status":"FINALIZED","amount":"4000"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
	req.Header.Set(payu.HeaderSignature, signBody(body))
	rec := httptest.NewRecorder()

	webhookRouter(store, processor).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "partially_refunded", resp.Data.Status)

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.True(t, loaded.AmountRefunded.Equal(decimal.RequireFromString("40")))
}

func TestWebhookRefundRedelivery(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, pay.Fire(payment.EventConfirmPayment))
	require.NoError(t, pay.Fire(payment.EventMarkAsPaid))
	require.NoError(t, store.Save(pay))

	// The same FINALIZED refund delivered twice must credit 50.00 once;
	// the dedup survives the store round-trip between deliveries.
	body := []byte(`{"refund":{"refundId":"R1","status":"FINALIZED","amount":"5000"}}`)
	router := webhookRouter(store, processor)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
		req.Header.Set(payu.HeaderSignature, signBody(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i+1)
	}

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPartiallyRefunded, loaded.Status())
	assert.True(t, loaded.AmountRefunded.Equal(decimal.RequireFromString("50")),
		"amountRefunded = %s, want 50", loaded.AmountRefunded)
}

func TestWebhookRedelivery(t *testing.T) {
	store := testStore(t)
	processor := testProcessor("http://127.0.0.1:1")

	pay := payment.New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, store.Save(pay))

	body := []byte(`{"order":{"orderId":"PAYU-ORDER-1","status":"COMPLETED"}}`)
	router := webhookRouter(store, processor)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payu/pay-1", bytes.NewReader(body))
		req.Header.Set(payu.HeaderSignature, signBody(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i+1)
	}

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, loaded.Status())
	assert.True(t, loaded.AmountPaid.Equal(decimal.RequireFromString("100")))
}
