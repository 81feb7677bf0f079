package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		ping   error
		status int
		body   string
	}{
		{"database up", nil, http.StatusOK, `{"status":"ok","database":"up"}`},
		{"database down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable, `{"status":"unavailable","database":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(pingFunc(func(context.Context) error { return tt.ping }))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d", rr.Code, tt.status)
			}
			if rr.Body.String() != tt.body {
				t.Errorf("body: got %s, want %s", rr.Body.String(), tt.body)
			}
		})
	}
}
