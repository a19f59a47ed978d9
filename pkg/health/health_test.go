package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyHandler(t *testing.T) {
	cases := []struct {
		name       string
		critical   bool
		pingErr    error
		wantCode   int
		wantStatus Status
	}{
		{"all up", true, nil, http.StatusOK, StatusUp},
		{"optional dependency down", false, errors.New("redis: connection refused"), http.StatusOK, StatusDegraded},
		{"critical dependency down", true, errors.New("postgres: connection refused"), http.StatusServiceUnavailable, StatusDown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker()
			c.Register("dep", PingCheck(func(context.Context) error { return tc.pingErr }, tc.critical))

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tc.wantCode)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if report.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", report.Status, tc.wantStatus)
			}
		})
	}
}

func TestDownOutranksDegraded(t *testing.T) {
	c := NewChecker()
	c.Register("cache", PingCheck(func(context.Context) error { return errors.New("x") }, false))
	c.Register("db", PingCheck(func(context.Context) error { return errors.New("y") }, true))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Errorf("status = %q, want down", got)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
