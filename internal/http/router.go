// README: API gateway; registers routes and delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/http/handlers"
	"github.com/Danylo93/projeto-freelas-sub000/internal/http/middleware"
	"github.com/Danylo93/projeto-freelas-sub000/internal/infra"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/offer"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/pricing"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
)

type RouterDeps struct {
	Requests   *request.Service
	Offers     *offer.Service
	Providers  *provider.Store
	Location   *location.Service
	Pricing    *pricing.Service
	Classifier handlers.CategoryClassifier
	Geocoder   handlers.Geocoder
	Quota      handlers.SuggestionQuota
	Verifier   infra.TokenVerifier
	Log        logging.Logger
	RadiusKm   float64
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	requestHandler := handlers.NewRequestHandler(deps.Requests, deps.Offers, deps.Classifier, deps.Geocoder, deps.Quota, deps.Log)
	providerHandler := handlers.NewProviderHandler(deps.Providers, deps.Location, deps.RadiusKm)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	api.POST("/requests", requestHandler.Create)
	api.GET("/requests", requestHandler.List)
	api.GET("/requests/:id", requestHandler.Get)
	api.PATCH("/requests/:id", requestHandler.Patch)
	api.POST("/requests/:id/accept-offer", requestHandler.AcceptOffer)
	api.POST("/requests/:id/decline-offer", requestHandler.DeclineOffer)
	api.POST("/requests/:id/rating", requestHandler.Rate)
	api.GET("/requests/:id/offers", requestHandler.ListOffers)

	providerOnly := api.Group("", middleware.RequireRole(middleware.RoleProvider))
	providerOnly.PUT("/requests/:id/status", requestHandler.UpdateStatus)
	providerOnly.POST("/requests/:id/accept", requestHandler.Accept)
	providerOnly.POST("/requests/:id/decline", requestHandler.Decline)
	providerOnly.POST("/requests/:id/offer", requestHandler.Offer)
	providerOnly.PATCH("/providers/:id/location", providerHandler.UpdateLocation)
	providerOnly.PUT("/providers/:id/device-token", providerHandler.SetDeviceToken)

	api.GET("/providers/nearby", providerHandler.Nearby)
	api.GET("/providers/:id", providerHandler.Get)

	if deps.Pricing != nil {
		pricingHandler := handlers.NewPricingHandler(deps.Pricing)
		api.GET("/pricing/suggestion", pricingHandler.Suggest)
	}

	return r
}
