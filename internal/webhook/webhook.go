// Package webhook receives completion callbacks from the BIGSI
// aggregation service over HTTP.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/atlasbio/atlas-search/internal/storage"
)

// Completer records a finished result for a fingerprint
type Completer interface {
	Complete(ctx context.Context, fingerprint string, result json.RawMessage) error
}

// payload is the callback body posted by the aggregation service
type payload struct {
	Fingerprint string          `json:"fingerprint"`
	Result      json.RawMessage `json:"result"`
}

// Handler serves the completion callback endpoint
type Handler struct {
	completer Completer
	apiKey    string
}

// NewHandler creates a callback handler. A non-empty apiKey requires
// callers to present it as a bearer token.
func NewHandler(completer Completer, apiKey string) *Handler {
	return &Handler{completer: completer, apiKey: apiKey}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body payload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if body.Fingerprint == "" || len(body.Result) == 0 {
		http.Error(w, "fingerprint and result are required", http.StatusBadRequest)
		return
	}

	err := h.completer.Complete(r.Context(), body.Fingerprint, body.Result)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "unknown fingerprint", http.StatusNotFound)
		return
	case err != nil:
		log.Printf("webhook: completion of %s failed: %v", body.Fingerprint, err)
		http.Error(w, "completion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Serve runs the callback listener until ctx is cancelled
func Serve(ctx context.Context, addr string, completer Completer, apiKey string) error {
	mux := http.NewServeMux()
	mux.Handle("/callbacks/search", NewHandler(completer, apiKey))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("callback listener: %w", err)
	}
}
