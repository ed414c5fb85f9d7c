// README: Handler tests for auth gating and request validation.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"farmlink/internal/http/handlers"
	httpmiddleware "farmlink/internal/http/middleware"
	"farmlink/internal/infra"
	"farmlink/internal/modules/trip"
)

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

// buildTestRouter wires a minimal Gin engine with the auth middleware and the
// trip handler. trip.NewService(nil) is safe here because every request in
// these tests is rejected by validation before any store call.
func buildTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := trip.NewService(nil)
	r := gin.New()
	r.Use(httpmiddleware.Auth(verifier))
	h := handlers.NewTripHandler(svc)
	r.POST("/api/trips", h.Create)
	return r
}

func riderVerifier(uid string) *stubTokenVerifier {
	return &stubTokenVerifier{token: &infra.FirebaseToken{
		UID:    uid,
		Claims: map[string]interface{}{"role": "rider"},
	}}
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTrip_Unauthenticated(t *testing.T) {
	r := buildTestRouter(riderVerifier("rider-1"))
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{"capacity_kg": 50}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateTrip_InvalidJSON(t *testing.T) {
	r := buildTestRouter(riderVerifier("rider-1"))
	req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateTrip_BadDepartAt(t *testing.T) {
	r := buildTestRouter(riderVerifier("rider-1"))
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{
		"depart_at":   "tomorrow-ish",
		"capacity_kg": 50,
	}, "Bearer token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateTrip_NonPositiveCapacity(t *testing.T) {
	r := buildTestRouter(riderVerifier("rider-1"))
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{
		"depart_at":   "2026-09-01T06:00:00Z",
		"capacity_kg": 0,
	}, "Bearer token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
