package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropDatabas3/adaptivemfa/internal/errs"
)

// setProviderEnv deja el mínimo para que Validate pase.
func setProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_URL", "https://tenant.test")
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")
}

func TestLoadDefaults(t *testing.T) {
	setProviderEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.App.Env != "dev" {
		t.Fatalf("app_env: %q", cfg.App.Env)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr: %q", cfg.Server.Addr)
	}
	if cfg.Transaction.Store != "memory" {
		t.Fatalf("store: %q", cfg.Transaction.Store)
	}
	if cfg.TransactionTTL() != 600*time.Second {
		t.Fatalf("ttl: %v", cfg.TransactionTTL())
	}
	if cfg.TokenMargin() != 30*time.Second {
		t.Fatalf("margin: %v", cfg.TokenMargin())
	}
	if cfg.TokenCache.Storage != "none" {
		t.Fatalf("token storage: %q", cfg.TokenCache.Storage)
	}
	if cfg.IntrospectTTL() != 0 {
		t.Fatalf("introspect ttl: %v", cfg.IntrospectTTL())
	}
	// el rechazo de tokens de desafío MFA viene activado por defecto
	if cfg.Introspect.DenyMFAChallenge == nil || !*cfg.Introspect.DenyMFAChallenge {
		t.Fatal("deny_mfa_challenge debía ser true por defecto")
	}
	if cfg.Rate.MaxRequests != 60 || cfg.RateWindow() != time.Minute {
		t.Fatalf("rate: %d/%v", cfg.Rate.MaxRequests, cfg.RateWindow())
	}
}

func TestLoadYAMLFile(t *testing.T) {
	setProviderEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: ":9999"
transaction:
  store: memory
  ttl: 120s
introspect:
  cache_max_size: 500
  deny_mfa_challenge: false
rate:
  enabled: true
  window: 30s
  max_requests: 10
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr: %q", cfg.Server.Addr)
	}
	if cfg.TransactionTTL() != 2*time.Minute {
		t.Fatalf("ttl: %v", cfg.TransactionTTL())
	}
	if cfg.Introspect.CacheMaxSize != 500 {
		t.Fatalf("cache_max_size: %d", cfg.Introspect.CacheMaxSize)
	}
	// un false explícito en YAML no debe pisarse con el default true
	if *cfg.Introspect.DenyMFAChallenge {
		t.Fatal("deny_mfa_challenge: false explícito fue pisado")
	}
	if !cfg.Rate.Enabled || cfg.Rate.MaxRequests != 10 {
		t.Fatalf("rate: %+v", cfg.Rate)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	setProviderEnv(t)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("TRANSACTION_TTL", "90s")
	t.Setenv("INTROSPECT_DENY_MFA_CHALLENGE", "false")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("el env debía pisar el yaml: %q", cfg.Server.Addr)
	}
	if cfg.TransactionTTL() != 90*time.Second {
		t.Fatalf("ttl: %v", cfg.TransactionTTL())
	}
	if *cfg.Introspect.DenyMFAChallenge {
		t.Fatal("deny_mfa_challenge debía quedar en false")
	}
}

func TestValidateMissingProvider(t *testing.T) {
	t.Setenv("TENANT_URL", "")
	t.Setenv("CLIENT_ID", "cid")
	t.Setenv("CLIENT_SECRET", "csecret")

	_, err := Load("")
	var cfgErr *errs.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("esperaba ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "provider.tenant_url" {
		t.Fatalf("field: %q", cfgErr.Field)
	}
}

func TestValidateRedisStoreNeedsAddr(t *testing.T) {
	setProviderEnv(t)
	t.Setenv("TRANSACTION_STORE", "redis")
	t.Setenv("REDIS_ADDR", "")

	_, err := Load("")
	var cfgErr *errs.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("esperaba ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "redis.addr" {
		t.Fatalf("field: %q", cfgErr.Field)
	}
}

func TestValidateBadDuration(t *testing.T) {
	setProviderEnv(t)
	t.Setenv("TRANSACTION_TTL", "no-es-duracion")

	if _, err := Load(""); err == nil {
		t.Fatal("una duración inválida debía fallar en Load")
	}
}
