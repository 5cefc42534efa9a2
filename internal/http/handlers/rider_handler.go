// README: Rider handlers for claim, reject, location, and availability.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http/middleware"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type RiderHandler struct {
	engine *dispatch.Engine
	riders *rider.Store
}

func NewRiderHandler(engine *dispatch.Engine, riders *rider.Store) *RiderHandler {
	return &RiderHandler{engine: engine, riders: riders}
}

func (h *RiderHandler) Claim(c *gin.Context) {
	err := h.engine.ClaimOrder(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "assigned": true})
}

func (h *RiderHandler) Reject(c *gin.Context) {
	err := h.engine.RejectOrder(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "assigned": false})
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *RiderHandler) Location(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "invalid json")
		return
	}
	err := h.engine.RecordLocation(c.Request.Context(), middleware.Principal(c), types.ID(c.Param("id")),
		types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

type availabilityReq struct {
	Available bool `json:"available"`
}

// SetAvailability lets a rider flip their own availability flag while off
// delivery; assignment logic owns the flag while an order is held.
func (h *RiderHandler) SetAvailability(c *gin.Context) {
	p := middleware.Principal(c)
	if p.Role != auth.RoleRider {
		writeError(c, http.StatusForbidden, "access_denied", "riders only")
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "invalid json")
		return
	}
	presence := rider.PresenceOnline
	if !req.Available {
		presence = rider.PresenceOffline
	}
	if err := h.riders.SetAvailability(c.Request.Context(), p.ID, req.Available, presence); err != nil {
		writeEngineError(c, err)
		return
	}
	if !req.Available {
		// Offline riders leave the geo index so nearby lookups skip them.
		if err := h.riders.Remove(c.Request.Context(), p.ID, p.TenantID); err != nil {
			writeEngineError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"available": req.Available})
}

// Nearby lists the tenant's riders within radius_km of a point, closest
// first. Staff use it to chase down unclaimed ready orders.
func (h *RiderHandler) Nearby(c *gin.Context) {
	p := middleware.Principal(c)
	switch p.Role {
	case auth.RoleStaff, auth.RoleAdmin, auth.RoleSuperAdmin:
	default:
		writeError(c, http.StatusForbidden, "access_denied", "staff only")
		return
	}
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "validation_failure", "lat and lng are required")
		return
	}
	radius := 5.0
	if v := c.Query("radius_km"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			radius = r
		}
	}
	ids, err := h.riders.Nearby(c.Request.Context(), p.TenantID, types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rider_ids": ids, "radius_km": radius})
}
