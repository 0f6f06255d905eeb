package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carelog-backend/internal/services/health"
	"carelog-backend/internal/shared/telemetry"
)

func serve(t *testing.T, deps RouterDeps, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	prev := telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(prev) })

	resp := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(resp, httptest.NewRequest(method, path, nil))
	return resp
}

func TestHealthz(t *testing.T) {
	resp := serve(t, RouterDeps{}, http.MethodGet, "/healthz")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestReadyzReflectsChecks(t *testing.T) {
	ready := false
	checks := health.NewService()
	checks.Add("bootstrap", func(ctx context.Context) error {
		if !ready {
			return errors.New("not bootstrapped")
		}
		return nil
	})
	deps := RouterDeps{Health: checks}

	if resp := serve(t, deps, http.MethodGet, "/readyz"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before bootstrap, got %d", resp.Code)
	}
	ready = true
	if resp := serve(t, deps, http.MethodGet, "/readyz"); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 after bootstrap, got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp := serve(t, RouterDeps{}, http.MethodGet, "/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "sweep_runs_total") {
		t.Fatalf("expected sweep counters in body")
	}
}

func TestTriggerJob(t *testing.T) {
	var triggered []string
	deps := RouterDeps{
		Jobs: []string{"sweep", "reconcile"},
		Trigger: func(ctx context.Context, job string) error {
			triggered = append(triggered, job)
			if job == "reconcile" {
				return errors.New("queue unavailable")
			}
			return nil
		},
	}

	if resp := serve(t, deps, http.MethodPost, "/jobs/sweep"); resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if resp := serve(t, deps, http.MethodPost, "/jobs/reconcile"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if resp := serve(t, deps, http.MethodPost, "/jobs/vacuum"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if len(triggered) != 2 {
		t.Fatalf("expected 2 triggers, got %v", triggered)
	}
}

func TestTriggerRouteDisabledWithoutTrigger(t *testing.T) {
	if resp := serve(t, RouterDeps{}, http.MethodPost, "/jobs/sweep"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9090": ":9090", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
