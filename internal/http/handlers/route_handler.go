// README: Route summary handler over the ping history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http/middleware"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/location"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type RouteHandler struct {
	engine   *dispatch.Engine
	location *location.Service
}

func NewRouteHandler(engine *dispatch.Engine, loc *location.Service) *RouteHandler {
	return &RouteHandler{engine: engine, location: loc}
}

// Summary returns the condensed ping history for an order the caller may
// view. Used for dispute resolution and post-delivery review.
func (h *RouteHandler) Summary(c *gin.Context) {
	id := types.ID(c.Param("id"))
	// The engine read enforces tenant scoping before any history is exposed.
	if _, err := h.engine.GetOrder(c.Request.Context(), middleware.Principal(c), id); err != nil {
		writeEngineError(c, err)
		return
	}
	sum, err := h.location.Summarize(c.Request.Context(), id)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
