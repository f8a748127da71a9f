package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atlasbio/atlas-search/internal/storage"
)

// mockCompleter records completions and can be made to fail
type mockCompleter struct {
	completed map[string]json.RawMessage
	err       error
}

func newMockCompleter() *mockCompleter {
	return &mockCompleter{completed: make(map[string]json.RawMessage)}
}

func (m *mockCompleter) Complete(_ context.Context, fingerprint string, result json.RawMessage) error {
	if m.err != nil {
		return m.err
	}
	m.completed[fingerprint] = result
	return nil
}

func post(t *testing.T, handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callbacks/search", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCallbackCompletes(t *testing.T) {
	completer := newMockCompleter()
	handler := NewHandler(completer, "")

	w := post(t, handler, `{"fingerprint":"fp-1","result":{"ERR1":{"percent":100}}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, ok := completer.completed["fp-1"]; !ok {
		t.Error("completion never reached the completer")
	}
}

func TestCallbackRejectsBadInput(t *testing.T) {
	completer := newMockCompleter()
	handler := NewHandler(completer, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "nope", http.StatusBadRequest},
		{"missing fingerprint", `{"result":{}}`, http.StatusBadRequest},
		{"missing result", `{"fingerprint":"fp-1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := post(t, handler, tt.body, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCallbackRejectsWrongMethod(t *testing.T) {
	handler := NewHandler(newMockCompleter(), "")
	req := httptest.NewRequest(http.MethodGet, "/callbacks/search", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestCallbackAuth(t *testing.T) {
	completer := newMockCompleter()
	handler := NewHandler(completer, "secret")
	body := `{"fingerprint":"fp-1","result":{}}`

	if w := post(t, handler, body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", w.Code)
	}
	if w := post(t, handler, body, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", w.Code)
	}
	if w := post(t, handler, body, map[string]string{"Authorization": "Bearer secret"}); w.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", w.Code)
	}
}

func TestCallbackUnknownFingerprint(t *testing.T) {
	completer := newMockCompleter()
	completer.err = storage.ErrNotFound
	handler := NewHandler(completer, "")

	w := post(t, handler, `{"fingerprint":"no-such","result":{}}`, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCallbackInternalError(t *testing.T) {
	completer := newMockCompleter()
	completer.err = errors.New("database locked")
	handler := NewHandler(completer, "")

	w := post(t, handler, `{"fingerprint":"fp-1","result":{}}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
