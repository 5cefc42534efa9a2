// README: Shared handler utilities (JSON helpers, failure-category mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
)

// errorResponse carries a machine-checkable category alongside the message.
type errorResponse struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}

func writeError(c *gin.Context, status int, category string, msg string) {
	c.JSON(status, errorResponse{Category: category, Error: msg})
}

// writeEngineError maps the engine failure taxonomy onto HTTP statuses.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		writeError(c, http.StatusBadRequest, "validation_failure", err.Error())
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, dispatch.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, dispatch.ErrAccessDenied),
		errors.Is(err, auth.ErrFrozenTenant),
		errors.Is(err, auth.ErrSessionSuperseded):
		writeError(c, http.StatusForbidden, "access_denied", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "dependency_failure", "internal error")
	}
}
