// README: Gateway contract tests against the in-process hub.
package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

func testRecord(id string, status request.Status, version int) *request.ServiceRequest {
	now := time.Now().UTC()
	return &request.ServiceRequest{
		ID:            types.ID(id),
		RequesterID:   "u1",
		Category:      "Eletricista",
		Origin:        types.Point{Lat: -23.55, Lng: -46.63},
		Price:         types.Money{Amount: 5000, Currency: "BRL"},
		Status:        status,
		StatusVersion: version,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSubscribeDeliversCurrentThenUpdates(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	if err := hub.PublishRequest(ctx, testRecord("req_1", request.StatusSearching, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got []RequestSnapshot
	unsub := hub.SubscribeRequest("req_1", func(s RequestSnapshot) {
		got = append(got, s)
	})
	defer unsub()

	if len(got) != 1 || got[0].Status != "searching" {
		t.Fatalf("expected immediate snapshot, got %v", got)
	}

	if err := hub.PublishRequest(ctx, testRecord("req_1", request.StatusAccepted, 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[1].Status != "accepted" {
		t.Fatalf("expected update notification, got %v", got)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	calls := 0
	unsub := hub.SubscribeRequest("req_1", func(RequestSnapshot) { calls++ })

	unsub()
	unsub() // second call must be a no-op

	if err := hub.PublishRequest(ctx, testRecord("req_1", request.StatusSearching, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("callback invoked %d times after unsubscribe", calls)
	}
}

func TestConnectionStatusIndeterminateUntilFirstSample(t *testing.T) {
	hub := NewHub()

	var got []bool
	unsub := hub.ConnectionStatus(func(c bool) { got = append(got, c) })
	defer unsub()

	if len(got) != 0 {
		t.Fatalf("expected no signal before the transport reports, got %v", got)
	}

	hub.SetConnected(true)
	hub.SetConnected(false)
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("connectivity sequence = %v, want [true false]", got)
	}

	// late subscriber gets the known state immediately
	var late []bool
	unsub2 := hub.ConnectionStatus(func(c bool) { late = append(late, c) })
	defer unsub2()
	if len(late) != 1 || late[0] != false {
		t.Fatalf("late subscriber got %v, want [false]", late)
	}
}

func TestPatchIsPerFieldLastWriteWins(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	if err := hub.PublishRequest(ctx, testRecord("req_1", request.StatusSearching, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var last RequestSnapshot
	unsub := hub.SubscribeRequest("req_1", func(s RequestSnapshot) { last = s })
	defer unsub()

	if err := hub.PatchRequest(ctx, "req_1", map[string]any{"status": "accepted", "provider_id": "p1"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if last.Status != "accepted" || last.ProviderID != "p1" {
		t.Fatalf("patch not applied: %+v", last)
	}
	// untouched fields survive
	if last.Category != "Eletricista" {
		t.Fatalf("patch clobbered unrelated field: %+v", last)
	}
}

func TestLocationSubscription(t *testing.T) {
	hub := NewHub()

	var got []LocationSample
	unsub := hub.SubscribeLocation("p1", func(s LocationSample) { got = append(got, s) })

	hub.PublishLocationSample(LocationSample{ProviderID: "p1", Lat: -23.55, Lng: -46.63, Timestamp: 1})
	hub.PublishLocationSample(LocationSample{ProviderID: "p2", Lat: 0, Lng: 0, Timestamp: 2})
	hub.PublishLocationSample(LocationSample{ProviderID: "p1", Lat: -23.56, Lng: -46.64, Timestamp: 3})

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications for p1, got %d", len(got))
	}
	if got[1].Lat != -23.56 {
		t.Fatalf("latest sample mismatch: %+v", got[1])
	}

	unsub()
	hub.PublishLocationSample(LocationSample{ProviderID: "p1", Lat: 1, Lng: 1, Timestamp: 4})
	if len(got) != 2 {
		t.Fatal("notification delivered after unsubscribe")
	}
}

func TestPresenceJoinLeave(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	if err := hub.Presence(ctx, "room_req_1", "u1", true); err != nil {
		t.Fatal(err)
	}
	if err := hub.Presence(ctx, "room_req_1", "p1", true); err != nil {
		t.Fatal(err)
	}
	if n := len(hub.Members("room_req_1")); n != 2 {
		t.Fatalf("members = %d, want 2", n)
	}
	if err := hub.Presence(ctx, "room_req_1", "p1", false); err != nil {
		t.Fatal(err)
	}
	m := hub.Members("room_req_1")
	if len(m) != 1 || m[0] != "u1" {
		t.Fatalf("members after leave = %v", m)
	}
}
