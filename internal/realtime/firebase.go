// README: Firebase RTDB-backed Gateway (poll-driven change detection).
package realtime

import (
	"context"
	"sync"
	"time"

	"firebase.google.com/go/v4/db"
	"github.com/go-playground/validator"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
)

const (
	requestsNode  = "requests"
	locationsNode = "providerLocations"
	roomsNode     = "rooms"
	usersNode     = "users"
	connectedPath = ".info/connected"
)

// FirebaseGateway implements Gateway on the Firebase Realtime Database. The
// Go Admin SDK offers no streaming listener, so change detection is a
// short-interval ref poll keyed on updated_at/timestamp; payloads are
// validated before they reach any consumer.
type FirebaseGateway struct {
	db           *db.Client
	pollInterval time.Duration
	validate     *validator.Validate
	log          logging.Logger

	mu   sync.Mutex
	subs map[string]UnsubscribeFunc
}

func NewFirebaseGateway(dbClient *db.Client, pollInterval time.Duration, log logging.Logger) *FirebaseGateway {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &FirebaseGateway{
		db:           dbClient,
		pollInterval: pollInterval,
		validate:     validator.New(),
		log:          log,
		subs:         make(map[string]UnsubscribeFunc),
	}
}

func (g *FirebaseGateway) ConnectionStatus(fn func(bool)) UnsubscribeFunc {
	return g.startPoll("conn", func(ctx context.Context) {
		var last *bool
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var connected bool
				if err := g.db.NewRef(connectedPath).Get(ctx, &connected); err != nil {
					// a failed probe is itself a disconnect signal
					connected = false
				}
				if last == nil || *last != connected {
					v := connected
					last = &v
					fn(connected)
				}
			}
		}
	})
}

func (g *FirebaseGateway) SubscribeRequest(id string, fn func(RequestSnapshot)) UnsubscribeFunc {
	return g.startPoll("req/"+id, func(ctx context.Context) {
		var lastUpdated int64 = -1
		deliver := func() {
			var snap RequestSnapshot
			if err := g.db.NewRef(requestsNode).Child(id).Get(ctx, &snap); err != nil {
				g.log.Debugw("request poll failed", "request_id", id, "error", err)
				return
			}
			if snap.ID == "" {
				return // not present yet
			}
			if err := g.validate.Struct(snap); err != nil {
				g.log.Warnw("dropping malformed request snapshot", "request_id", id, "error", err)
				return
			}
			if snap.UpdatedAt == lastUpdated {
				return
			}
			lastUpdated = snap.UpdatedAt
			fn(snap)
		}

		deliver() // snapshot-on-subscribe
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	})
}

func (g *FirebaseGateway) SubscribeLocation(providerID string, fn func(LocationSample)) UnsubscribeFunc {
	return g.startPoll("loc/"+providerID, func(ctx context.Context) {
		var lastTS int64 = -1
		deliver := func() {
			var sample LocationSample
			if err := g.db.NewRef(locationsNode).Child(providerID).Get(ctx, &sample); err != nil {
				g.log.Debugw("location poll failed", "provider_id", providerID, "error", err)
				return
			}
			sample.ProviderID = providerID
			if sample.Timestamp == 0 {
				return
			}
			if err := g.validate.Struct(sample); err != nil {
				g.log.Warnw("dropping malformed location sample", "provider_id", providerID, "error", err)
				return
			}
			if sample.Timestamp == lastTS {
				return
			}
			lastTS = sample.Timestamp
			fn(sample)
		}

		deliver()
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	})
}

func (g *FirebaseGateway) PatchRequest(ctx context.Context, id string, fields map[string]any) error {
	return g.db.NewRef(requestsNode).Child(id).Update(ctx, fields)
}

func (g *FirebaseGateway) Presence(ctx context.Context, roomID, userID string, join bool) error {
	ref := g.db.NewRef(roomsNode).Child(roomID).Child("members").Child(userID)
	if join {
		return ref.Set(ctx, true)
	}
	return ref.Delete(ctx)
}

// SetUserStatus writes the coarse online/offline flag under users/{id}/status.
func (g *FirebaseGateway) SetUserStatus(ctx context.Context, userID, status string) error {
	return g.db.NewRef(usersNode).Child(userID).Child("status").Set(ctx, status)
}

// PublishRequest writes the full authoritative record to requests/{id};
// implements the request module's Mirror contract.
func (g *FirebaseGateway) PublishRequest(ctx context.Context, r *request.ServiceRequest) error {
	snap := SnapshotFromRequest(r)
	return g.db.NewRef(requestsNode).Child(snap.ID).Set(ctx, snap)
}

// startPoll spawns the subscription goroutine, replacing any live
// subscription for the same key first. The returned UnsubscribeFunc is
// idempotent.
func (g *FirebaseGateway) startPoll(key string, run func(ctx context.Context)) UnsubscribeFunc {
	g.mu.Lock()
	if prior, ok := g.subs[key]; ok {
		delete(g.subs, key)
		g.mu.Unlock()
		prior()
		g.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			cancel()
			g.mu.Lock()
			delete(g.subs, key)
			g.mu.Unlock()
		})
	}
	g.subs[key] = unsub
	g.mu.Unlock()

	go run(ctx)
	return unsub
}
