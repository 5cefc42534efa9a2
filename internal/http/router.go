// README: HTTP route registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http/handlers"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http/middleware"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/location"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/ws"
)

type RouterDeps struct {
	Gate     *auth.Gate
	Engine   *dispatch.Engine
	Orders   *order.Store
	Riders   *rider.Store
	Location *location.Service
	Stream   *stream.Router
	WS       *ws.Handler
	Logger   *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/health/stream", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Stream.Stats())
	})

	// The live channel authenticates inside the handshake, not via the
	// bearer middleware, so the freeze check runs before any upgrade.
	r.GET("/ws", deps.WS.Serve)

	orderHandler := handlers.NewOrderHandler(deps.Engine, deps.Orders)
	riderHandler := handlers.NewRiderHandler(deps.Engine, deps.Riders)
	routeHandler := handlers.NewRouteHandler(deps.Engine, deps.Location)

	api := r.Group("/api", middleware.Auth(deps.Gate))
	{
		api.POST("/orders", orderHandler.Create)
		api.GET("/orders/:id", orderHandler.Get)
		api.GET("/order-numbers/:number", orderHandler.GetByNumber)
		api.POST("/orders/:id/items", orderHandler.AddItems)
		api.POST("/orders/:id/advance", orderHandler.Advance)
		api.POST("/orders/:id/cancel", orderHandler.Cancel)
		api.GET("/orders/:id/route", routeHandler.Summary)
		api.GET("/customer/orders", orderHandler.ListMine)

		api.POST("/rider/orders/:id/claim", riderHandler.Claim)
		api.POST("/rider/orders/:id/reject", riderHandler.Reject)
		api.POST("/rider/orders/:id/location", riderHandler.Location)
		api.PUT("/rider/availability", riderHandler.SetAvailability)
		api.GET("/riders/nearby", riderHandler.Nearby)
	}

	return r
}
