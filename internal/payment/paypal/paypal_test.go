package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/payment"

	"github.com/shopspring/decimal"
)

func newFakePaypal(t *testing.T, captureStatus int, captureBody map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "token-1"})
	})
	mux.HandleFunc("/v2/checkout/orders/PAYPAL-1/capture", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(captureStatus)
		_ = json.NewEncoder(w).Encode(captureBody)
	})
	mux.HandleFunc("/v2/checkout/orders/PAYPAL-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(captureBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func captureBody(status, amount, invoice string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "PAYPAL-1",
		"status": status,
		"purchase_units": []interface{}{
			map[string]interface{}{
				"invoice_id": invoice,
				"payments": map[string]interface{}{
					"captures": []interface{}{
						map[string]interface{}{
							"id":          "CAPTURE-1",
							"status":      status,
							"create_time": "2026-02-09T12:00:00Z",
							"amount": map[string]interface{}{
								"value":         amount,
								"currency_code": "TWD",
							},
						},
					},
				},
			},
		},
	}
}

func newTestGateway(baseURL string) *Gateway {
	cfg := FromAppConfig(config.PaypalGatewayConfig{
		ClientID:     " cid ",
		ClientSecret: "secret",
		BaseURL:      baseURL + "/",
	})
	return NewGateway(cfg, nil)
}

func TestFromAppConfigNormalizes(t *testing.T) {
	cfg := FromAppConfig(config.PaypalGatewayConfig{ClientID: " cid ", ClientSecret: "secret"})
	if cfg.ClientID != "cid" {
		t.Fatalf("client id not normalized, got: %s", cfg.ClientID)
	}
	if cfg.BaseURL != defaultSandboxBaseURL {
		t.Fatalf("expected sandbox default, got: %s", cfg.BaseURL)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig should pass, got: %v", err)
	}
	if err := ValidateConfig(&Config{ClientSecret: "secret", BaseURL: defaultSandboxBaseURL}); err == nil {
		t.Fatalf("expected missing client id to fail")
	}
}

func TestVerifyCompletedCapture(t *testing.T) {
	server := newFakePaypal(t, http.StatusCreated, captureBody("COMPLETED", "900.00", "MT001"))
	gateway := newTestGateway(server.URL)

	result, err := gateway.Verify(context.Background(), payment.VerifyInput{
		OrderNo:       "MT001",
		TransactionID: "PAYPAL-1",
		Method:        constants.PaymentMethodPaypal,
		Amount:        decimal.RequireFromString("900"),
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Status != payment.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Status, result.Reason)
	}
}

func TestVerifyAmountMismatchDeclines(t *testing.T) {
	server := newFakePaypal(t, http.StatusCreated, captureBody("COMPLETED", "100.00", "MT001"))
	gateway := newTestGateway(server.URL)

	result, err := gateway.Verify(context.Background(), payment.VerifyInput{
		OrderNo:       "MT001",
		TransactionID: "PAYPAL-1",
		Amount:        decimal.RequireFromString("900"),
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Status != payment.StatusDeclined || result.Reason != "amount_mismatch" {
		t.Fatalf("expected amount mismatch decline, got %+v", result)
	}
}

func TestVerifyAlreadyCapturedFallsBackToLookup(t *testing.T) {
	server := newFakePaypal(t, http.StatusUnprocessableEntity, captureBody("COMPLETED", "900.00", "MT001"))
	gateway := newTestGateway(server.URL)

	result, err := gateway.Verify(context.Background(), payment.VerifyInput{
		OrderNo:       "MT001",
		TransactionID: "PAYPAL-1",
		Amount:        decimal.RequireFromString("900"),
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Status != payment.StatusCompleted {
		t.Fatalf("expected completed after lookup, got %+v", result)
	}
}

func TestVerifyDeclinedCapture(t *testing.T) {
	server := newFakePaypal(t, http.StatusCreated, captureBody("DECLINED", "900.00", "MT001"))
	gateway := newTestGateway(server.URL)

	result, err := gateway.Verify(context.Background(), payment.VerifyInput{
		OrderNo:       "MT001",
		TransactionID: "PAYPAL-1",
		Amount:        decimal.RequireFromString("900"),
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Status != payment.StatusDeclined {
		t.Fatalf("expected declined, got %+v", result)
	}
}

func TestVerifyServerErrorReturnsError(t *testing.T) {
	server := newFakePaypal(t, http.StatusInternalServerError, map[string]interface{}{})
	gateway := newTestGateway(server.URL)

	if _, err := gateway.Verify(context.Background(), payment.VerifyInput{TransactionID: "PAYPAL-1"}); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}

func TestToPaymentStatus(t *testing.T) {
	status, ok := ToPaymentStatus("PAYMENT.CAPTURE.COMPLETED", "")
	if !ok || status != constants.CallbackStatusCompleted {
		t.Fatalf("expected completed status for completed event, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("", "DECLINED")
	if !ok || status != constants.CallbackStatusFailed {
		t.Fatalf("expected failed status for declined resource, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("PAYMENT.CAPTURE.REFUNDED", "")
	if !ok || status != constants.CallbackStatusRefunded {
		t.Fatalf("expected refunded status, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("UNKNOWN", "UNKNOWN")
	if ok || status != "" {
		t.Fatalf("expected unsupported mapping, got %s %v", status, ok)
	}
}

func TestWebhookEventHelpers(t *testing.T) {
	body := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"invoice_id": "MT20260209120000123456",
			"status": "COMPLETED",
			"supplementary_data": {"related_ids": {"order_id": "PAYPAL-1"}}
		}
	}`)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if got := event.RelatedOrderID(); got != "PAYPAL-1" {
		t.Fatalf("unexpected order id: %s", got)
	}
	if got := event.InvoiceID(); got != "MT20260209120000123456" {
		t.Fatalf("unexpected invoice id: %s", got)
	}
	if status := event.ResourceStatus(); status != "COMPLETED" {
		t.Fatalf("unexpected resource status: %s", status)
	}
	if _, err := ParseWebhookEvent([]byte(`{"id":"x"}`)); err == nil {
		t.Fatalf("expected missing event_type to fail")
	}
}
