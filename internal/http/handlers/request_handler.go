// README: Service-request handlers: create, lifecycle transitions, offers, rating.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/http/middleware"
	"github.com/Danylo93/projeto-freelas-sub000/internal/logging"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/offer"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
	"github.com/Danylo93/projeto-freelas-sub000/internal/types"
)

// CategoryClassifier suggests a category from free text when the caller
// omits one. Failures fall back to an empty category, never an error.
type CategoryClassifier interface {
	SuggestCategory(ctx context.Context, description string) (string, error)
}

// Geocoder resolves a free-text address into a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// SuggestionQuota meters classifier calls per user per month.
type SuggestionQuota interface {
	UseToken(ctx context.Context, uid string) error
}

type RequestHandler struct {
	requests   *request.Service
	offers     *offer.Service
	classifier CategoryClassifier
	geocoder   Geocoder
	quota      SuggestionQuota
	log        logging.Logger
}

func NewRequestHandler(requests *request.Service, offers *offer.Service, classifier CategoryClassifier, geocoder Geocoder, quota SuggestionQuota, log logging.Logger) *RequestHandler {
	return &RequestHandler{
		requests:   requests,
		offers:     offers,
		classifier: classifier,
		geocoder:   geocoder,
		quota:      quota,
		log:        log,
	}
}

type createRequestReq struct {
	RequesterID string      `json:"requester_id"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Address     string      `json:"address"`
	Origin      types.Point `json:"origin"`
	Price       types.Money `json:"price"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = middleware.UID(c)
	}
	if req.RequesterID != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot create for another user")
		return
	}

	origin := req.Origin
	if origin.IsZero() && req.Address != "" && h.geocoder != nil {
		p, err := h.geocoder.Geocode(c.Request.Context(), req.Address)
		if err != nil {
			writeError(c, http.StatusUnprocessableEntity, "address could not be resolved")
			return
		}
		origin = p
	}
	category := req.Category
	if category == "" && h.classifier != nil && h.allowSuggestion(c) {
		if suggested, err := h.classifier.SuggestCategory(c.Request.Context(), req.Description); err == nil {
			category = suggested
		} else {
			h.log.Warnw("category suggestion failed", "err", err)
		}
	}
	price := req.Price
	if price.Currency == "" {
		price.Currency = types.DefaultCurrency
	}

	r, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		RequesterID: types.ID(req.RequesterID),
		Category:    category,
		Description: req.Description,
		Origin:      origin,
		Price:       price,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

// allowSuggestion deducts one classifier call from the caller's monthly
// allowance. An exhausted quota skips the suggestion without failing the
// request; so does a quota backend error.
func (h *RequestHandler) allowSuggestion(c *gin.Context) bool {
	if h.quota == nil {
		return true
	}
	if err := h.quota.UseToken(c.Request.Context(), middleware.UID(c)); err != nil {
		h.log.Warnw("category suggestion skipped", "uid", middleware.UID(c), "err", err)
		return false
	}
	return true
}

func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.requests.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RequestHandler) List(c *gin.Context) {
	status := request.Status(c.Query("status"))
	if status == "" {
		status = request.StatusSearching
	}
	list, err := h.requests.ListByStatus(c.Request.Context(), status)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list)
}

type patchRequestReq struct {
	Status       string `json:"status"`
	CancelReason string `json:"cancel_reason"`
}

// Patch handles the partial update route. Cancel is the only mutation
// the contract admits here.
func (h *RequestHandler) Patch(c *gin.Context) {
	var req patchRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if req.Status != string(request.StatusCancelled) {
		writeError(c, http.StatusUnprocessableEntity, "only cancellation may be patched")
		return
	}
	id := types.ID(c.Param("id"))
	actorType := "requester"
	if c.GetString(middleware.ContextRole) == middleware.RoleProvider {
		actorType = "provider"
	}
	err := h.requests.Cancel(c.Request.Context(), request.CancelCommand{
		RequestID: id,
		ActorType: actorType,
		Reason:    req.CancelReason,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	h.respondWithRecord(c, id)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus drives the provider-side forward transitions.
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	ctx := c.Request.Context()

	var err error
	switch request.Status(req.Status) {
	case request.StatusArrived:
		err = h.requests.Arrive(ctx, request.ArriveCommand{RequestID: id})
	case request.StatusInProgress:
		err = h.requests.Start(ctx, request.StartCommand{RequestID: id})
	case request.StatusCompleted:
		err = h.requests.Finish(ctx, request.FinishCommand{RequestID: id})
	default:
		writeError(c, http.StatusUnprocessableEntity, "unsupported status")
		return
	}
	if err != nil {
		writeRequestError(c, err)
		return
	}
	h.respondWithRecord(c, id)
}

type acceptReq struct {
	ProviderID string `json:"provider_id"`
	// Price is accepted on the wire for the offer-less accept flow but the
	// listed price stands; a binding price change goes through the offer path.
	Price types.Money `json:"price"`
}

func (h *RequestHandler) Accept(c *gin.Context) {
	var req acceptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if req.ProviderID == "" {
		req.ProviderID = middleware.UID(c)
	}
	if req.ProviderID != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot accept for another provider")
		return
	}
	id := types.ID(c.Param("id"))
	err := h.requests.Accept(c.Request.Context(), request.AcceptCommand{
		RequestID:  id,
		ProviderID: types.ID(req.ProviderID),
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	if h.offers != nil {
		h.offers.Settle(c.Request.Context(), id, types.ID(req.ProviderID))
	}
	h.respondWithRecord(c, id)
}

type declineReq struct {
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason"`
}

func (h *RequestHandler) Decline(c *gin.Context) {
	var req declineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if req.ProviderID == "" {
		req.ProviderID = middleware.UID(c)
	}
	id := types.ID(c.Param("id"))
	err := h.requests.Reject(c.Request.Context(), request.RejectCommand{
		RequestID:  id,
		ProviderID: types.ID(req.ProviderID),
		Reason:     req.Reason,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "declined"})
}

type offerReq struct {
	ProviderID string      `json:"provider_id"`
	Price      types.Money `json:"price"`
}

// Offer places a provider bid and moves the request to "offered".
func (h *RequestHandler) Offer(c *gin.Context) {
	var req offerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	if req.ProviderID == "" {
		req.ProviderID = middleware.UID(c)
	}
	if req.ProviderID != middleware.UID(c) {
		writeError(c, http.StatusForbidden, "cannot offer for another provider")
		return
	}
	price := req.Price
	if price.Currency == "" {
		price.Currency = types.DefaultCurrency
	}
	id := types.ID(c.Param("id"))
	err := h.requests.Offer(c.Request.Context(), request.OfferCommand{
		RequestID:  id,
		ProviderID: types.ID(req.ProviderID),
		Price:      price,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	if h.offers != nil {
		if oerr := h.offers.Place(c.Request.Context(), types.ID(req.ProviderID), id, price); oerr != nil {
			h.log.Warnw("offer record not stored", "request_id", id, "err", oerr)
		}
	}
	h.respondWithRecord(c, id)
}

// AcceptOffer confirms the pending bid; requester side.
func (h *RequestHandler) AcceptOffer(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if err := h.requests.AcceptOffer(c.Request.Context(), request.AcceptOfferCommand{RequestID: id}); err != nil {
		writeRequestError(c, err)
		return
	}
	if h.offers != nil {
		if r, err := h.requests.Get(c.Request.Context(), id); err == nil && r.ProviderID != nil {
			h.offers.Settle(c.Request.Context(), id, *r.ProviderID)
		}
	}
	h.respondWithRecord(c, id)
}

// DeclineOffer clears the pending bid and returns the request to the pool.
func (h *RequestHandler) DeclineOffer(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if err := h.requests.DeclineOffer(c.Request.Context(), request.DeclineOfferCommand{RequestID: id}); err != nil {
		writeRequestError(c, err)
		return
	}
	h.respondWithRecord(c, id)
}

type rateReq struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

func (h *RequestHandler) Rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	err := h.requests.Rate(c.Request.Context(), request.RateCommand{
		RequestID: id,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	h.respondWithRecord(c, id)
}

// ListOffers exposes the stored bids for one request.
func (h *RequestHandler) ListOffers(c *gin.Context) {
	if h.offers == nil {
		writeJSON(c, http.StatusOK, []any{})
		return
	}
	list, err := h.offers.ListByRequest(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list)
}

func (h *RequestHandler) respondWithRecord(c *gin.Context, id types.ID) {
	r, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
