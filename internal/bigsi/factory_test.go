package bigsi

import (
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvCallbackURL, "")
}

func TestNewFromEnvDefaultsToLocal(t *testing.T) {
	clearEnv(t)
	client, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer func() { _ = client.Close() }()
	if client.Provider() != ProviderLocal {
		t.Errorf("provider = %q, want local", client.Provider())
	}
}

func TestNewFromEnvURLImpliesHTTP(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBaseURL, "http://bigsi.example.com")
	client, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer func() { _ = client.Close() }()
	if client.Provider() != ProviderHTTP {
		t.Errorf("provider = %q, want http", client.Provider())
	}
}

func TestNewFromEnvExplicitProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "local")
	t.Setenv(EnvBaseURL, "http://bigsi.example.com")
	client, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer func() { _ = client.Close() }()
	if client.Provider() != ProviderLocal {
		t.Errorf("provider = %q, want local", client.Provider())
	}
}

func TestNewFromEnvUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "carrier-pigeon")
	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewFromEnvHTTPRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvProvider, "http")
	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error when http provider has no URL")
	}
}

func TestDetectProvider(t *testing.T) {
	clearEnv(t)
	if got := DetectProvider(); got != ProviderLocal {
		t.Errorf("DetectProvider() = %q, want local", got)
	}
	t.Setenv(EnvBaseURL, "http://bigsi.example.com")
	if got := DetectProvider(); got != ProviderHTTP {
		t.Errorf("DetectProvider() = %q, want http", got)
	}
	t.Setenv(EnvProvider, "local")
	if got := DetectProvider(); got != ProviderLocal {
		t.Errorf("DetectProvider() = %q, want local", got)
	}
}
