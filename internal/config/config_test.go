package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Order.PaymentExpireMinutes != 30 {
		t.Fatalf("payment expire minutes want 30 got %d", cfg.Order.PaymentExpireMinutes)
	}
	if cfg.Payment.Breaker.FailureThreshold != 5 {
		t.Fatalf("breaker threshold want 5 got %d", cfg.Payment.Breaker.FailureThreshold)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Fatalf("metrics path want /metrics got %s", cfg.Metrics.Path)
	}
	if cfg.Captcha.Provider != "none" || cfg.Captcha.Image.Length != 5 {
		t.Fatalf("captcha defaults want none/5 got %s/%d", cfg.Captcha.Provider, cfg.Captcha.Image.Length)
	}
	if cfg.Queue.Queues["critical"] != 6 {
		t.Fatalf("critical queue weight want 6 got %d", cfg.Queue.Queues["critical"])
	}
}

func TestDurationHelpersFallback(t *testing.T) {
	if got := (PaymentConfig{}).Timeout(); got != 8*time.Second {
		t.Fatalf("timeout fallback want 8s got %s", got)
	}
	if got := (PaymentConfig{TimeoutMS: 1500}).Timeout(); got != 1500*time.Millisecond {
		t.Fatalf("timeout want 1.5s got %s", got)
	}
	if got := (PaymentConfig{}).RetryDelay(); got != 30*time.Second {
		t.Fatalf("retry delay fallback want 30s got %s", got)
	}
	if got := (OrderConfig{PaymentExpireMinutes: 5}).PaymentExpireDuration(); got != 5*time.Minute {
		t.Fatalf("expire want 5m got %s", got)
	}
}

func TestAppLocation(t *testing.T) {
	if got := (AppConfig{}).Location(); got != time.Local {
		t.Fatalf("empty timezone should use local, got %s", got)
	}
	if got := (AppConfig{Timezone: "Not/AZone"}).Location(); got != time.Local {
		t.Fatalf("invalid timezone should fall back to local, got %s", got)
	}
	if got := (AppConfig{Timezone: "UTC"}).Location(); got.String() != "UTC" {
		t.Fatalf("timezone want UTC got %s", got)
	}
}
