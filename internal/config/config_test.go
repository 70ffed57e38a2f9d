package config

import (
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PLATFORM_FEE_BPS", "1200")
	t.Setenv("RECONCILE_INTERVAL", "5m")
	t.Setenv("BALANCE_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,,https://b.example")
	t.Setenv("STRIPE_SECRET_KEY", "")

	cfg := Load()
	if cfg.PlatformFeeBps != 1200 {
		t.Fatalf("expected fee 1200, got %d", cfg.PlatformFeeBps)
	}
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Fatalf("expected 5m interval, got %s", cfg.ReconcileInterval)
	}
	if cfg.BalanceCacheTTL != 30*time.Second {
		t.Fatalf("expected fallback ttl, got %s", cfg.BalanceCacheTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.StripeEnabled() {
		t.Fatal("stripe should be disabled without a secret key")
	}
}

func TestReconcileDisabledByDefault(t *testing.T) {
	t.Setenv("RECONCILE_INTERVAL", "0")
	if got := Load().ReconcileInterval; got != 0 {
		t.Fatalf("expected reconcile disabled, got %s", got)
	}
}
