// README: Concurrency tests for request state transitions (run with -race).
package request

import (
	"context"
	"sync"
	"testing"

	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, "u_race_accept")

	providerIDs := []types.ID{"p1", "p2", "p3"}
	errs := make(chan error, len(providerIDs))
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, providerID := range providerIDs {
		wg.Add(1)
		go func(pid types.ID) {
			defer wg.Done()
			<-start
			errs <- svc.Accept(ctx, AcceptCommand{RequestID: r.ID, ProviderID: pid})
		}(providerID)
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrConflict && err != ErrInvalidState {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful accept, got %d", success)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", got.Status)
	}
	if got.ProviderID == nil {
		t.Fatal("no provider bound after accept race")
	}
}

func TestConcurrentAcceptVsCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, "u_race_cancel")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Accept(ctx, AcceptCommand{RequestID: r.ID, ProviderID: "p1"})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Cancel(ctx, CancelCommand{RequestID: r.ID, ActorType: "requester", Reason: "user_cancel"})
	}()

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrConflict && err != ErrInvalidState {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// whichever write lands first wins; both may succeed only when the cancel
	// follows the accept (accepted permits cancel), never the other way round
	if success < 1 {
		t.Fatal("expected at least one command to succeed")
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusAccepted && got.Status != StatusCancelled {
		t.Fatalf("unexpected final status %s", got.Status)
	}
}

func TestConcurrentOfferSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, "u_race_offer")

	providerIDs := []types.ID{"p1", "p2", "p3", "p4"}
	errs := make(chan error, len(providerIDs))
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, providerID := range providerIDs {
		wg.Add(1)
		go func(pid types.ID) {
			defer wg.Done()
			<-start
			errs <- svc.Offer(ctx, OfferCommand{RequestID: r.ID, ProviderID: pid, Price: types.Money{Amount: 6000}})
		}(providerID)
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
		} else if err != ErrConflict && err != ErrInvalidState {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful offer, got %d", success)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusOffered || got.OfferProviderID == nil {
		t.Fatalf("pending offer not held by a single provider: %s %v", got.Status, got.OfferProviderID)
	}
}
