package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/logger"
	"github.com/tillpoint/pos-api/internal/middleware"
)

const testJWTSecret = "test-jwt-secret"

var testLogger = logger.Discard()

// openSessions accepts any session whose ID is the staff member's UUID,
// which is how testClaims builds them.
type openSessions struct{}

func (openSessions) ValidateSession(_ context.Context, id string) (database.StaffSession, error) {
	staffID, err := uuid.Parse(id)
	if err != nil {
		return database.StaffSession{}, err
	}
	return database.StaffSession{ID: id, StaffID: staffID}, nil
}

func authMiddleware() func(http.Handler) http.Handler {
	return middleware.Authenticate(testJWTSecret, openSessions{})
}

func testClaims(role string) *auth.Claims {
	staffID := uuid.New()
	return &auth.Claims{
		StaffID:   staffID,
		SessionID: staffID.String(),
		Role:      role,
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, router, newRequest(t, method, path, body))
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, 0, claims.StaffID, claims.SessionID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := newRequest(t, method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return serve(t, router, req)
}

func newRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}

	var b []byte
	switch v := body.(type) {
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}
