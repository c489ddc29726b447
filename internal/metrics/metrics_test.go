package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.CouponEvaluated("valid")
	r.CouponEvaluated("valid")
	r.CouponEvaluated("expired")
	r.Checkout("created")
	r.RedemptionApplied()
	r.RedemptionReleased()
	r.OrderTransition("pending", "processing")
	r.QueueTask("payment:verify", errors.New("boom"))

	if got := testutil.ToFloat64(r.couponEvaluations.WithLabelValues("valid")); got != 2 {
		t.Fatalf("expected 2 valid evaluations, got %v", got)
	}
	if got := testutil.ToFloat64(r.couponEvaluations.WithLabelValues("expired")); got != 1 {
		t.Fatalf("expected 1 expired evaluation, got %v", got)
	}
	if got := testutil.ToFloat64(r.redemptions.WithLabelValues("released")); got != 1 {
		t.Fatalf("expected 1 release, got %v", got)
	}
	if got := testutil.ToFloat64(r.queueTasks.WithLabelValues("payment:verify", "error")); got != 1 {
		t.Fatalf("expected 1 failed task, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.CouponEvaluated("valid")
	r.Checkout("created")
	r.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	if r.Registry() != nil {
		t.Fatalf("nil recorder should not expose a registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveHTTP("GET", "/api/v1/courses", 200, 15*time.Millisecond)
	r.GatewayCall("paypal", "completed")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, name := range []string{
		"musictutor_http_request_duration_seconds_bucket",
		"musictutor_payment_gateway_calls_total",
		"go_goroutines",
	} {
		if !strings.Contains(text, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
