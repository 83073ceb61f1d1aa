// README: Fan-out tests with stubbed directory, finder and sender.
package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type stubFinder struct {
	result []location.NearbyProvider
}

func (s stubFinder) Nearby(context.Context, types.Point, float64) ([]location.NearbyProvider, error) {
	return s.result, nil
}

type stubDirectory struct {
	providers map[types.ID]*provider.Provider
}

func (s stubDirectory) Get(_ context.Context, id types.ID) (*provider.Provider, error) {
	p, ok := s.providers[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return p, nil
}

type recordingSender struct {
	tokens []string
	fail   map[string]bool
}

func (s *recordingSender) NotifyProviderNewRequest(_ context.Context, token string, _ location.RequestInfo) error {
	if s.fail[token] {
		return errors.New("unregistered token")
	}
	s.tokens = append(s.tokens, token)
	return nil
}

func testRequest() *request.ServiceRequest {
	return &request.ServiceRequest{
		ID:          "req_1",
		RequesterID: "user_1",
		Category:    "Pintor",
		Origin:      types.Point{Lat: -23.55, Lng: -46.63},
		Price:       types.Money{Amount: 15000, Currency: "BRL"},
		Status:      request.StatusSearching,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestFanOutSkipsMissingTokens(t *testing.T) {
	finder := stubFinder{result: []location.NearbyProvider{
		{ProviderID: "p1"}, {ProviderID: "p2"}, {ProviderID: "p3"},
	}}
	dir := stubDirectory{providers: map[types.ID]*provider.Provider{
		"p1": {ID: "p1", DeviceToken: "tok-1"},
		"p2": {ID: "p2"}, // no token registered
	}}
	sender := &recordingSender{}

	svc := NewService(finder, dir, sender, 5, logging.NewTestLogger())
	svc.RequestCreated(context.Background(), testRequest())

	if len(sender.tokens) != 1 || sender.tokens[0] != "tok-1" {
		t.Fatalf("delivered to %v, want [tok-1]", sender.tokens)
	}
}

func TestFanOutSurvivesDeliveryFailure(t *testing.T) {
	finder := stubFinder{result: []location.NearbyProvider{
		{ProviderID: "p1"}, {ProviderID: "p2"},
	}}
	dir := stubDirectory{providers: map[types.ID]*provider.Provider{
		"p1": {ID: "p1", DeviceToken: "tok-bad"},
		"p2": {ID: "p2", DeviceToken: "tok-good"},
	}}
	sender := &recordingSender{fail: map[string]bool{"tok-bad": true}}

	svc := NewService(finder, dir, sender, 5, logging.NewTestLogger())
	svc.RequestCreated(context.Background(), testRequest())

	if len(sender.tokens) != 1 || sender.tokens[0] != "tok-good" {
		t.Fatalf("delivered to %v, want [tok-good]", sender.tokens)
	}
}
