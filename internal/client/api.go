// README: Authoritative REST API client with bearer auth and one 401 refresh-retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// CredentialSource supplies auth headers and can refresh an expired
// credential. A 401 response triggers exactly one Refresh before the
// call is retried; a second 401 is surfaced as a hard auth failure.
type CredentialSource interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
	Refresh(ctx context.Context) error
}

type API struct {
	base        string
	httpClient  *http.Client
	credentials CredentialSource
	log         logging.Logger
}

func NewAPI(base string, creds CredentialSource, log logging.Logger) *API {
	return &API{
		base:        base,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		credentials: creds,
		log:         log,
	}
}

// CreateRequestInput mirrors the POST /requests payload.
type CreateRequestInput struct {
	RequesterID string      `json:"requester_id"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Origin      types.Point `json:"origin"`
	Price       types.Money `json:"price"`
}

func (a *API) CreateRequest(ctx context.Context, in CreateRequestInput) (*request.ServiceRequest, error) {
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, "/requests", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) GetRequest(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/requests/%s", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListRequests(ctx context.Context, status request.Status) ([]*request.ServiceRequest, error) {
	var out []*request.ServiceRequest
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/requests?status=%s", status), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) CancelRequest(ctx context.Context, id types.ID, reason string) (*request.ServiceRequest, error) {
	body := map[string]string{"status": string(request.StatusCancelled), "cancel_reason": reason}
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPatch, fmt.Sprintf("/requests/%s", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus drives the arrived / in_progress / completed transitions.
func (a *API) UpdateStatus(ctx context.Context, id types.ID, status request.Status) (*request.ServiceRequest, error) {
	body := map[string]string{"status": string(status)}
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPut, fmt.Sprintf("/requests/%s/status", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AcceptRequest(ctx context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error) {
	body := map[string]any{"provider_id": providerID, "price": price}
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/accept", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOffer posts a provider bid against a searching request.
func (a *API) PlaceOffer(ctx context.Context, id types.ID, providerID types.ID, price types.Money) (*request.ServiceRequest, error) {
	body := map[string]any{"provider_id": providerID, "price": price}
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/offer", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptOffer confirms the pending bid; the offer price becomes binding.
func (a *API) AcceptOffer(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/accept-offer", id), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclineOffer clears the pending bid and resumes the search.
func (a *API) DeclineOffer(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/decline-offer", id), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeclineRequest(ctx context.Context, id types.ID, providerID types.ID, reason string) error {
	body := map[string]any{"provider_id": providerID, "reason": reason}
	return a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/decline", id), body, nil)
}

func (a *API) RateRequest(ctx context.Context, id types.ID, rating int, comment string) (*request.ServiceRequest, error) {
	body := map[string]any{"rating": rating, "comment": comment}
	var out request.ServiceRequest
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf("/requests/%s/rating", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) GetProvider(ctx context.Context, id types.ID) (map[string]any, error) {
	var out map[string]any
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/providers/%s", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PublishLocation is the REST mirror of the realtime location path,
// used when the realtime transport is unavailable.
func (a *API) PublishLocation(ctx context.Context, providerID types.ID, p types.Point, heading *float64) error {
	body := map[string]any{"lat": p.Lat, "lng": p.Lng}
	if heading != nil {
		body["heading"] = *heading
	}
	return a.do(ctx, http.MethodPatch, fmt.Sprintf("/providers/%s/location", providerID), body, nil)
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	status, raw, err := a.send(ctx, method, path, body)
	if err != nil {
		return newError(KindTransient, fmt.Sprintf("%s %s", method, path), err)
	}
	if status == http.StatusUnauthorized {
		if rerr := a.credentials.Refresh(ctx); rerr != nil {
			return newError(KindAuth, "credential refresh failed", rerr)
		}
		status, raw, err = a.send(ctx, method, path, body)
		if err != nil {
			return newError(KindTransient, fmt.Sprintf("%s %s (after refresh)", method, path), err)
		}
	}
	if kerr := classifyStatus(status, method, path, raw); kerr != nil {
		return kerr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(KindTransient, "decode response", err)
	}
	return nil
}

func (a *API) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	headers, err := a.credentials.AuthHeaders(ctx)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func classifyStatus(status int, method, path string, raw []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnprocessableEntity, status == http.StatusBadRequest:
		return newError(KindValidation, apiMessage(raw, "invalid payload"), nil)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return newError(KindAuth, apiMessage(raw, "authentication failed"), nil)
	case status == http.StatusConflict:
		return newError(KindConflict, apiMessage(raw, "request no longer available"), nil)
	case status == http.StatusNotFound:
		return newError(KindValidation, apiMessage(raw, "not found"), nil)
	default:
		return newError(KindTransient, fmt.Sprintf("%s %s: status %d", method, path, status), nil)
	}
}

func apiMessage(raw []byte, fallback string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fallback
}
