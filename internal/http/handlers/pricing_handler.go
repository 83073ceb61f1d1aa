// README: Price suggestion endpoint.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/pricing"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

// Suggest returns an advisory starting price for a job. distance_km and
// hours are optional; category defaults to Outros via the rate card.
func (h *PricingHandler) Suggest(c *gin.Context) {
	in := pricing.QuoteInput{
		Category:    c.Query("category"),
		RequestTime: time.Now(),
	}
	if v := c.Query("distance_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(c, http.StatusUnprocessableEntity, "invalid distance_km")
			return
		}
		in.DistanceKm = f
	}
	if v := c.Query("hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(c, http.StatusUnprocessableEntity, "invalid hours")
			return
		}
		in.EstimatedHours = f
	}

	quote, err := h.pricing.Suggest(c.Request.Context(), in)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "suggestion unavailable")
		return
	}
	writeJSON(c, http.StatusOK, quote)
}
