// README: Entry point; loads config, wires services, starts HTTP server and the timeout sweeper.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Danylo93/projeto-freelas-sub000/internal/ai"
	"github.com/Danylo93/projeto-freelas-sub000/internal/config"
	httptransport "github.com/Danylo93/projeto-freelas-sub000/internal/http"
	"github.com/Danylo93/projeto-freelas-sub000/internal/infra"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/maps"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/aiusage"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/offer"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/pricing"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/notify"
	"github.com/Danylo93/projeto-freelas-sub000/internal/realtime"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatalf("FREELAS_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatalf("firebase init: %v", err)
	}
	firebaseSvc, err := location.NewFirebaseService(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("firebase rtdb init: %v", err)
	}
	gateway := realtime.NewFirebaseGateway(firebaseSvc.Database(), cfg.Realtime.PollInterval, logger)

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("postgres init: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Fatalf("redis init: %v", err)
	}

	providerStore := provider.NewStore(dbPool)
	locationSvc := location.NewService(location.NewStore(dbPool, redisClient), firebaseSvc, logger, cfg.Location.StaleAfter)
	offerSvc := offer.NewService(offer.NewStore(redisClient), logger)
	notifier := notify.NewService(locationSvc, providerStore, firebaseSvc, cfg.Matching.RadiusKm, logger)
	requestSvc := request.NewService(request.NewStore(dbPool), logger, request.Options{
		Mirror:        gateway,
		Notifier:      notifier,
		SearchTimeout: cfg.Matching.SearchTimeout,
		SweepInterval: cfg.Matching.SweepInterval,
	})

	deps := httptransport.RouterDeps{
		Requests:  requestSvc,
		Offers:    offerSvc,
		Providers: providerStore,
		Location:  locationSvc,
		Pricing:   pricing.NewService(pricing.NewStore(dbPool)),
		Verifier:  verifier,
		Log:       logger,
		RadiusKm:  cfg.Matching.RadiusKm,
	}
	if cfg.AI.GeminiKey != "" {
		classifier, err := ai.NewClassifier(ctx, cfg.AI.GeminiKey)
		if err != nil {
			logger.Fatalf("gemini init: %v", err)
		}
		defer classifier.Close()
		deps.Classifier = classifier
		deps.Quota = aiusage.NewService(aiusage.NewStore(dbPool))
	}
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocodingService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatalf("maps init: %v", err)
		}
		deps.Geocoder = geocoder
	}

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: httptransport.NewRouter(deps)}

	go requestSvc.RunTimeoutSweeper(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("server shutdown", "err", err)
		}
	}()

	logger.Infow("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server: %v", err)
	}
}
