package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	attendtls "github.com/HatiCode/attendbench/pkg/tls"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, http.StatusServiceUnavailable, "store unavailable")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.Error != "store unavailable" {
		t.Errorf("error = %q, want %q", resp.Error, "store unavailable")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" {
			t.Fatal("request ID not set in context")
		}
		if got := w.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("response header = %q, want %q", got, seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "bench-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if seen != "bench-42" {
			t.Errorf("context request ID = %q, want bench-42", seen)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }),
		RequestIDMiddleware,
		LoggingMiddleware(discardLogger()),
		RecoveryMiddleware(discardLogger()),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attendance", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("request ID header missing on recovered response")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(attendtls.Config{}, 3*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", c.Timeout)
	}

	if _, err := NewClient(attendtls.Config{Enabled: true, CAFile: "/nonexistent/ca.pem"}, time.Second); err == nil {
		t.Error("NewClient() with missing CA should fail")
	}
}
