package bigsi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Provider configuration
const (
	ProviderHTTP  = "http"
	ProviderLocal = "local"

	// Environment variables
	EnvProvider    = "ATLAS_BIGSI_PROVIDER"
	EnvBaseURL     = "ATLAS_BIGSI_URL"
	EnvAPIKey      = "ATLAS_BIGSI_API_KEY"
	EnvCallbackURL = "ATLAS_CALLBACK_URL"
)

// HTTPProvider implements Client against a remote BIGSI aggregation API
type HTTPProvider struct {
	baseURL     string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
}

// NewHTTPProvider creates a client for a remote aggregation service.
// callbackURL is where the service posts completed results.
func NewHTTPProvider(baseURL, apiKey, callbackURL string) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvBaseURL)
	}

	return &HTTPProvider{
		baseURL:     baseURL,
		apiKey:      apiKey,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (h *HTTPProvider) Dispatch(ctx context.Context, req DispatchRequest) (*Job, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	job, err := retryWithBackoff(ctx, dispatchRetryConfig(), func() (*Job, error) {
		return h.callAPI(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, dispatchAttempts, err)
	}

	return job, nil
}

func (h *HTTPProvider) callAPI(ctx context.Context, dr DispatchRequest) (*Job, error) {
	reqBody := map[string]interface{}{
		"fingerprint": dr.Fingerprint,
		"type":        string(dr.Type),
		"query":       json.RawMessage(dr.Query),
	}
	if h.callbackURL != "" {
		reqBody["callback_url"] = h.callbackURL
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/api/v1/searches", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.JobID == "" {
		apiResp.JobID = uuid.NewString()
	}

	return &Job{ID: apiResp.JobID, Provider: ProviderHTTP}, nil
}

func (h *HTTPProvider) Provider() string {
	return ProviderHTTP
}

func (h *HTTPProvider) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

// Completer receives a finished result for a dispatched fingerprint
type Completer func(ctx context.Context, fingerprint string, result json.RawMessage) error

// LocalProvider runs search jobs in-process and feeds results straight
// back through the completer. Used for development and tests.
type LocalProvider struct {
	mu        sync.Mutex
	completer Completer
	delay     time.Duration
}

// NewLocalProvider creates a local provider (placeholder backend)
func NewLocalProvider() (*LocalProvider, error) {
	return &LocalProvider{}, nil
}

// SetCompleter wires the completion callback. Must be called before Dispatch.
func (l *LocalProvider) SetCompleter(fn Completer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completer = fn
}

// SetDelay makes completion arrive after the given delay instead of inline
func (l *LocalProvider) SetDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = d
}

func (l *LocalProvider) Dispatch(ctx context.Context, req DispatchRequest) (*Job, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	l.mu.Lock()
	completer := l.completer
	delay := l.delay
	l.mu.Unlock()

	if completer == nil {
		return nil, fmt.Errorf("%w: local provider has no completer", ErrProviderFailed)
	}

	job := &Job{ID: uuid.NewString(), Provider: ProviderLocal}

	// Stub result: every sample set contains one exact match.
	// A real deployment talks to the aggregation API instead.
	result, err := json.Marshal(map[string]interface{}{
		"ERR1": map[string]interface{}{"percent": 100},
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		_ = completer(context.WithoutCancel(ctx), req.Fingerprint, result)
	}()

	return job, nil
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Close() error {
	return nil
}

var _ Client = (*HTTPProvider)(nil)
var _ Client = (*LocalProvider)(nil)
