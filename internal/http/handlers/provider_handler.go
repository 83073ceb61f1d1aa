// README: Provider handlers: profile lookup, nearby search, location publish.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/http/middleware"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

type ProviderHandler struct {
	providers     *provider.Store
	location      *location.Service
	defaultRadius float64
}

func NewProviderHandler(providers *provider.Store, loc *location.Service, defaultRadiusKm float64) *ProviderHandler {
	return &ProviderHandler{providers: providers, location: loc, defaultRadius: defaultRadiusKm}
}

func (h *ProviderHandler) Get(c *gin.Context) {
	p, err := h.providers.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// Nearby lists providers with a live location sample inside the radius,
// closest first. Display only; it plays no part in matching.
func (h *ProviderHandler) Nearby(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusUnprocessableEntity, "lat and lng are required")
		return
	}
	radius := h.defaultRadius
	if v := c.Query("radius_km"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			radius = r
		}
	}
	list, err := h.location.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list)
}

type locationReq struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading"`
}

// UpdateLocation is the REST mirror of the realtime location path.
func (h *ProviderHandler) UpdateLocation(c *gin.Context) {
	id := c.Param("id")
	if id != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot publish for another provider")
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	err := h.location.Publish(c.Request.Context(), location.Update{
		ProviderID: types.ID(id),
		Position:   types.Point{Lat: req.Lat, Lng: req.Lng},
		Heading:    req.Heading,
	})
	if err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

// SetDeviceToken stores the FCM token used for new-request notifications.
func (h *ProviderHandler) SetDeviceToken(c *gin.Context) {
	id := c.Param("id")
	if id != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot update another provider")
		return
	}
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusUnprocessableEntity, "token is required")
		return
	}
	if err := h.providers.SetDeviceToken(c.Request.Context(), types.ID(id), req.Token); err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
