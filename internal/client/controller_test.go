// README: Matching controller tests: lifecycle orchestration over a fake API and hub.
package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Danylo93/projeto-freelas-sub000/internal/guard"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/realtime"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

var testOrigin = types.Point{Lat: -23.5505, Lng: -46.6333}

func testInput() CreateRequestInput {
	return CreateRequestInput{
		Category:    "Eletricista",
		Description: "troca de disjuntor",
		Origin:      testOrigin,
		Price:       types.Money{Amount: 5000, Currency: "BRL"},
	}
}

func newRequester(t *testing.T, api RequestAPI, hub *realtime.Hub, opts ...func(*ControllerOptions)) *Controller {
	t.Helper()
	o := ControllerOptions{
		API:     api,
		Gateway: hub,
		Log:     logging.NewTestLogger(),
		ActorID: "user_1",
		Role:    RoleRequester,
	}
	for _, fn := range opts {
		fn(&o)
	}
	c := NewController(o)
	t.Cleanup(c.Close)
	return c
}

func newProvider(t *testing.T, api RequestAPI, hub *realtime.Hub, actor types.ID, opts ...func(*ControllerOptions)) *Controller {
	t.Helper()
	o := ControllerOptions{
		API:      api,
		Gateway:  hub,
		Log:      logging.NewTestLogger(),
		ActorID:  actor,
		Role:     RoleProvider,
		Position: fixedPosition{p: types.Point{Lat: -23.56, Lng: -46.64}},
	}
	for _, fn := range opts {
		fn(&o)
	}
	c := NewController(o)
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCreateRoundTrip(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	c := newRequester(t, api, hub)

	r, err := c.Create(context.Background(), testInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != request.StatusSearching {
		t.Fatalf("status = %s, want searching", r.Status)
	}
	if r.Price.Amount != 5000 || r.Category != "Eletricista" {
		t.Fatalf("input fields lost: %+v", r)
	}
	if cur := c.Current(); cur == nil || cur.ID != r.ID {
		t.Fatal("controller did not track the created request")
	}
}

func TestSecondCreateWhileActiveRejected(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	c := newRequester(t, api, hub)

	if _, err := c.Create(context.Background(), testInput()); err != nil {
		t.Fatal(err)
	}
	_, err := c.Create(context.Background(), testInput())
	if !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestHappyPathTwoDevices(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	provider := newProvider(t, api, hub, "prov_1")

	r, err := requester.Create(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := provider.Accept(ctx, r.ID, types.Money{Amount: 8000, Currency: "BRL"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	waitFor(t, func() bool {
		cur := requester.Current()
		return cur != nil && cur.Status == request.StatusAccepted
	}, "requester never saw accepted")

	cur := requester.Current()
	if cur.ProviderID == nil || *cur.ProviderID != "prov_1" {
		t.Fatalf("provider not bound: %+v", cur)
	}
	if cur.Price.Amount != 8000 {
		t.Fatalf("accepted price not bound: %+v", cur.Price)
	}

	if _, err := provider.MarkArrived(ctx); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if _, err := provider.StartService(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := provider.FinishService(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// terminal snapshot reaches the requester, then local state clears
	waitFor(t, func() bool { return requester.Current() == nil }, "requester did not return to idle")

	if _, err := requester.Rate(ctx, r.ID, 5, "excelente"); err != nil {
		t.Fatalf("rate: %v", err)
	}
	stored, _ := api.GetRequest(ctx, r.ID)
	if stored.Rating == nil || *stored.Rating != 5 {
		t.Fatalf("rating not persisted: %+v", stored)
	}
}

func TestOfferFlowBindsPrice(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	provider := newProvider(t, api, hub, "prov_1")

	r, err := requester.Create(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := provider.Offer(ctx, r.ID, types.Money{Amount: 9000, Currency: "BRL"}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	waitFor(t, func() bool {
		cur := requester.Current()
		return cur != nil && cur.Status == request.StatusOffered
	}, "requester never saw the offer")

	accepted, err := requester.AcceptOffer(ctx)
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	if accepted.Status != request.StatusAccepted {
		t.Fatalf("status = %s, want accepted", accepted.Status)
	}
	if accepted.Price.Amount != 9000 {
		t.Fatalf("offer price not bound: %+v", accepted.Price)
	}
	if accepted.ProviderID == nil || *accepted.ProviderID != "prov_1" {
		t.Fatalf("provider not bound: %+v", accepted)
	}
}

func TestDeclineOfferResumesSearch(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	provider := newProvider(t, api, hub, "prov_1")

	r, _ := requester.Create(ctx, testInput())
	if _, err := provider.Offer(ctx, r.ID, types.Money{Amount: 9000, Currency: "BRL"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		cur := requester.Current()
		return cur != nil && cur.Status == request.StatusOffered
	}, "requester never saw the offer")

	back, err := requester.DeclineOffer(ctx)
	if err != nil {
		t.Fatalf("decline offer: %v", err)
	}
	if back.Status != request.StatusSearching {
		t.Fatalf("status = %s, want searching", back.Status)
	}
	if back.OfferProviderID != nil {
		t.Fatalf("offer fields not cleared: %+v", back)
	}
}

func TestDoubleAcceptSingleWinner(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	p1 := newProvider(t, api, hub, "prov_1")
	p2 := newProvider(t, api, hub, "prov_2")

	r, err := requester.Create(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	price := types.Money{Amount: 7000, Currency: "BRL"}
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, p := range []*Controller{p1, p2} {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			_, err := c.Accept(ctx, r.ID, price)
			errs <- err
		}(p)
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/1", wins, conflicts)
	}

	stored, _ := api.GetRequest(ctx, r.ID)
	if stored.ProviderID == nil {
		t.Fatal("no provider bound after accept race")
	}
}

func TestCancelMidFlightBlocksFurtherAdvance(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	provider := newProvider(t, api, hub, "prov_1")

	r, _ := requester.Create(ctx, testInput())
	if _, err := provider.Accept(ctx, r.ID, types.Money{Amount: 6000, Currency: "BRL"}); err != nil {
		t.Fatal(err)
	}
	if _, err := provider.MarkArrived(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := provider.StartService(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := requester.Cancel(ctx, "desisti"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// cancellation propagates, provider returns to idle
	waitFor(t, func() bool { return provider.Current() == nil }, "provider did not observe cancellation")

	if _, err := provider.FinishService(ctx); !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition after cancel, got %v", err)
	}
}

func TestSearchTimeoutReleasesRequest(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)

	var mu sync.Mutex
	var seen []request.Status
	c := newRequester(t, api, hub, func(o *ControllerOptions) {
		o.SearchTimeout = 30 * time.Millisecond
	})
	c.OnChange(func(r *request.ServiceRequest) {
		mu.Lock()
		seen = append(seen, r.Status)
		mu.Unlock()
	})

	if _, err := c.Create(context.Background(), testInput()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.Current() == nil }, "timeout did not release the request")

	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	if last != request.StatusTimeout {
		t.Fatalf("last observed status = %s, want timeout", last)
	}
}

func TestReconciliationPollWhileDisconnected(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	c := newRequester(t, api, hub, func(o *ControllerOptions) {
		o.PollInterval = 20 * time.Millisecond
	})
	r, err := c.Create(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	hub.SetConnected(false)

	// the write lands server-side but no realtime notification goes out
	prov := types.ID("prov_9")
	api.mutate(r.ID, func(sr *request.ServiceRequest) {
		sr.Status = request.StatusAccepted
		sr.ProviderID = &prov
	})

	waitFor(t, func() bool {
		cur := c.Current()
		return cur != nil && cur.Status == request.StatusAccepted
	}, "poll never reconciled the missed update")

	hub.SetConnected(true)
}

func TestDuplicateCommandGuarded(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	r, _ := requester.Create(ctx, testInput())

	gate := make(chan struct{})
	api.acceptGate = gate

	g := guard.New(time.Minute, nil)
	p := newProvider(t, api, hub, "prov_1", func(o *ControllerOptions) { o.Guard = g })

	done := make(chan error, 1)
	go func() {
		_, err := p.Accept(ctx, r.ID, types.Money{Amount: 6000, Currency: "BRL"})
		done <- err
	}()
	waitFor(t, func() bool { return g.InFlight("accept_"+string(r.ID)) }, "first accept never started")

	if _, err := p.Accept(ctx, r.ID, types.Money{Amount: 6000, Currency: "BRL"}); !IsOperationInFlight(err) {
		t.Fatalf("expected operation-in-flight, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
}

func TestLocationRelayGatedByLifecycle(t *testing.T) {
	hub := realtime.NewHub()
	api := newFakeAPI(hub)
	ctx := context.Background()

	requester := newRequester(t, api, hub)
	provider := newProvider(t, api, hub, "prov_1", func(o *ControllerOptions) {
		o.PublishInterval = 10 * time.Millisecond
	})

	r, _ := requester.Create(ctx, testInput())
	if api.publishedCount() != 0 {
		t.Fatal("relay active before accept")
	}

	if _, err := provider.Accept(ctx, r.ID, types.Money{Amount: 6000, Currency: "BRL"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return api.publishedCount() > 0 }, "relay never published while accepted")

	// requester receives the stream through the hub
	waitFor(t, func() bool { return requester.ProviderLocation() != nil }, "requester never received a sample")

	if _, err := requester.Cancel(ctx, "mudou de ideia"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return provider.Current() == nil }, "provider did not observe cancellation")

	n := api.publishedCount()
	time.Sleep(50 * time.Millisecond)
	if api.publishedCount() > n+1 {
		t.Fatalf("relay kept publishing after terminal state: %d -> %d", n, api.publishedCount())
	}
}
