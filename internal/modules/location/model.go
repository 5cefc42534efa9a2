// README: Immutable rider location ping scoped to one order.
package location

import (
	"time"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// Ping is an append-only record of a rider's position at a point in time.
// Pings are never mutated or deleted; history is retained for dispute
// resolution.
type Ping struct {
	ID         int64
	OrderID    types.ID
	RiderID    types.ID
	Position   types.Point
	RecordedAt time.Time
}

// RouteSummary condenses an order's ping history.
type RouteSummary struct {
	OrderID    types.ID   `json:"order_id"`
	PingCount  int        `json:"ping_count"`
	DistanceKm float64    `json:"distance_km"`
	FirstAt    *time.Time `json:"first_at,omitempty"`
	LastAt     *time.Time `json:"last_at,omitempty"`
}
