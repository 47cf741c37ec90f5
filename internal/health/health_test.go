package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicegate/internal/health"
)

func probe(t *testing.T, h *health.Handler, path string) (*http.Response, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Result(), body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := health.New(map[string]health.Check{
		"backend": func(ctx context.Context) error { return errors.New("down") },
	})
	resp, body := probe(t, h, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	h := health.New(map[string]health.Check{
		"backend": func(ctx context.Context) error { return nil },
	})
	resp, body := probe(t, h, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	checks := body["checks"].(map[string]any)
	if checks["backend"] != "ok" {
		t.Errorf("backend check = %v, want ok", checks["backend"])
	}
}

func TestReadyz_FailingCheck_Returns503(t *testing.T) {
	h := health.New(map[string]health.Check{
		"backend": func(ctx context.Context) error { return errors.New("model load failed") },
		"store":   func(ctx context.Context) error { return nil },
	})
	resp, body := probe(t, h, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	checks := body["checks"].(map[string]any)
	if got := checks["backend"].(string); !strings.Contains(got, "model load failed") {
		t.Errorf("backend check = %q, want failure detail", got)
	}
	if checks["store"] != "ok" {
		t.Errorf("store check = %v, want ok", checks["store"])
	}
}
