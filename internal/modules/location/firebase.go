// README: Firebase RTDB location mirroring and FCM push notifications.
package location

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

const providerLocationsNode = "providerLocations"

// FirebaseService mirrors provider positions into RTDB (where requester
// clients hold their subscription) and sends FCM data messages to provider
// devices. It is decoupled from the request module.
type FirebaseService struct {
	app       *firebase.App
	dbClient  *db.Client
	msgClient *messaging.Client
	log       logging.Logger
}

// NewFirebaseService initialises the Firebase Admin SDK. credentialsFile may
// be empty, in which case application-default credentials are used.
func NewFirebaseService(ctx context.Context, projectID, credentialsFile, databaseURL string, log logging.Logger) (*FirebaseService, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	conf := &firebase.Config{
		ProjectID:   projectID,
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}

	dbClient, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase RTDB client: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging client: %w", err)
	}

	return &FirebaseService{app: app, dbClient: dbClient, msgClient: msgClient, log: log}, nil
}

// Database exposes the RTDB client so other components (the realtime
// gateway) can share one Firebase app.
func (s *FirebaseService) Database() *db.Client {
	return s.dbClient
}

// rtdbSample mirrors a providerLocations entry in RTDB.
type rtdbSample struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// PublishLocation writes the sample to providerLocations/{providerId},
// overwriting the previous one. Implements the location Mirror contract.
func (s *FirebaseService) PublishLocation(ctx context.Context, sample Sample) error {
	ref := s.dbClient.NewRef(providerLocationsNode).Child(string(sample.ProviderID))
	return ref.Set(ctx, rtdbSample{
		Lat:       sample.Position.Lat,
		Lng:       sample.Position.Lng,
		Heading:   sample.Heading,
		Timestamp: sample.RecordedAt.UnixMilli(),
	})
}

// RemoveLocation deletes the provider's RTDB entry when the relay shuts down.
func (s *FirebaseService) RemoveLocation(ctx context.Context, providerID types.ID) error {
	return s.dbClient.NewRef(providerLocationsNode).Child(string(providerID)).Delete(ctx)
}

// RequestInfo is the payload for the new-request data message.
type RequestInfo struct {
	RequestID   types.ID
	Category    string
	Description string
	Origin      types.Point
	Price       types.Money
}

// NotifyProviderNewRequest sends an FCM data message to a provider device.
// The deviceToken must be resolved by the caller.
func (s *FirebaseService) NotifyProviderNewRequest(ctx context.Context, deviceToken string, info RequestInfo) error {
	if deviceToken == "" {
		return fmt.Errorf("empty device token for request %s", string(info.RequestID))
	}

	msg := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":         "new_request",
			"request_id":   string(info.RequestID),
			"category":     info.Category,
			"lat":          strconv.FormatFloat(info.Origin.Lat, 'f', 6, 64),
			"lng":          strconv.FormatFloat(info.Origin.Lng, 'f', 6, 64),
			"price_amount": strconv.FormatInt(info.Price.Amount, 10),
			"currency":     info.Price.Currency,
		},
		Notification: &messaging.Notification{
			Title: "Novo pedido de serviço",
			Body:  fmt.Sprintf("%s por R$ %.2f", info.Category, float64(info.Price.Amount)/100),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := s.msgClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM to token %s: %w", deviceToken, err)
	}
	s.log.Debugw("FCM sent", "request_id", info.RequestID, "message_id", messageID)
	return nil
}
