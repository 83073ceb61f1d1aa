// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/location"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/offer"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/provider"
	"github.com/Danylo93/projeto-freelas-sub000/internal/modules/request"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeRequestError maps request-module sentinel errors onto the API's
// status contract: 422 validation, 404 missing, 409 state conflicts.
func writeRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, request.ErrBadRequest):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, request.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrInvalidState),
		errors.Is(err, request.ErrConflict),
		errors.Is(err, request.ErrActiveRequest),
		errors.Is(err, request.ErrAlreadyRated):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, offer.ErrBadRequest):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeProviderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, location.ErrBadUpdate):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
