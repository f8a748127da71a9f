package bigsi

import (
	"fmt"
	"os"
	"strings"
)

// Config holds client configuration
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	CallbackURL string
}

// NewFromEnv creates a client based on environment variables
// Priority:
// 1. ATLAS_BIGSI_PROVIDER (http, local)
// 2. ATLAS_BIGSI_URL implies the http provider
// 3. Default to local when no URL is configured
func NewFromEnv() (Client, error) {
	provider := os.Getenv(EnvProvider)
	baseURL := os.Getenv(EnvBaseURL)
	apiKey := os.Getenv(EnvAPIKey)
	callbackURL := os.Getenv(EnvCallbackURL)

	// Explicit provider selection
	if provider != "" {
		provider = strings.ToLower(provider)
		switch provider {
		case ProviderHTTP:
			return NewHTTPProvider(baseURL, apiKey, callbackURL)
		case ProviderLocal:
			return NewLocalProvider()
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrNoProviderEnabled, provider)
		}
	}

	// Auto-detect based on configured URL
	if baseURL != "" {
		return NewHTTPProvider(baseURL, apiKey, callbackURL)
	}

	// Fallback to local provider
	return NewLocalProvider()
}

// New creates a client with explicit configuration
func New(cfg Config) (Client, error) {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderHTTP:
		return NewHTTPProvider(cfg.BaseURL, cfg.APIKey, cfg.CallbackURL)
	case ProviderLocal:
		return NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrNoProviderEnabled, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvBaseURL) != "" {
		return ProviderHTTP
	}

	return ProviderLocal
}
