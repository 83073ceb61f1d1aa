// README: Handler tests for auth gating and the request routes.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/http/handlers"
	httpmiddleware "github.com/Danylo93/projeto-freelas-sub000/internal/http/middleware"
	"github.com/Danylo93/projeto-freelas-sub000/internal/infra"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(context.Context, string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Claims: claims}}
}

func buildTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logging.NewTestLogger()
	svc := request.NewService(request.NewMemRepository(), log, request.Options{})
	h := handlers.NewRequestHandler(svc, nil, nil, nil, nil, log)

	r := gin.New()
	api := r.Group("/api", httpmiddleware.Auth(verifier))
	api.POST("/requests", h.Create)
	api.GET("/requests/:id", h.Get)
	api.PATCH("/requests/:id", h.Patch)
	providerOnly := api.Group("", httpmiddleware.RequireRole(httpmiddleware.RoleProvider))
	providerOnly.POST("/requests/:id/accept", h.Accept)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any, authHeader string) *httptest.ResponseRecorder {
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

func createBody(requesterID string) map[string]any {
	return map[string]any{
		"requester_id": requesterID,
		"category":     "Encanador",
		"description":  "vazamento na pia",
		"origin":       types.Point{Lat: -23.55, Lng: -46.63},
		"price":        types.Money{Amount: 12000, Currency: "BRL"},
	}
}

func TestCreateUnauthenticated(t *testing.T) {
	r := buildTestRouter(&stubTokenVerifier{err: errors.New("no token")})
	w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_1"), "Bearer badtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateForAnotherUserForbidden(t *testing.T) {
	r := buildTestRouter(makeVerifier("user_1", ""))
	w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_2"), "Bearer token")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAcceptRequiresProviderRole(t *testing.T) {
	r := buildTestRouter(makeVerifier("user_1", ""))
	w := doRequest(r, http.MethodPost, "/api/requests/req_1/accept",
		map[string]any{"provider_id": "user_1"}, "Bearer token")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	r := buildTestRouter(makeVerifier("user_1", ""))

	w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_1"), "Bearer token")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created request.ServiceRequest
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Status != request.StatusSearching {
		t.Fatalf("status = %s, want searching", created.Status)
	}
	if created.ID == "" {
		t.Fatal("server did not assign an id")
	}

	w = doRequest(r, http.MethodGet, "/api/requests/"+string(created.ID), nil, "Bearer token")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var fetched request.ServiceRequest
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.Price.Amount != 12000 || fetched.Category != "Encanador" {
		t.Fatalf("round-trip lost fields: %+v", fetched)
	}
}

func TestDuplicateActiveRequestConflicts(t *testing.T) {
	r := buildTestRouter(makeVerifier("user_1", ""))
	if w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_1"), "Bearer token"); w.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", w.Code)
	}
	w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_1"), "Bearer token")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for second active request, got %d", w.Code)
	}
}

func TestPatchOnlyCancels(t *testing.T) {
	r := buildTestRouter(makeVerifier("user_1", ""))
	w := doRequest(r, http.MethodPost, "/api/requests", createBody("user_1"), "Bearer token")
	var created request.ServiceRequest
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doRequest(r, http.MethodPatch, "/api/requests/"+string(created.ID),
		map[string]any{"status": "accepted"}, "Bearer token")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for non-cancel patch, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPatch, "/api/requests/"+string(created.ID),
		map[string]any{"status": "cancelled", "cancel_reason": "mudou de ideia"}, "Bearer token")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel patch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cancelled request.ServiceRequest
	_ = json.Unmarshal(w.Body.Bytes(), &cancelled)
	if cancelled.Status != request.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
}
