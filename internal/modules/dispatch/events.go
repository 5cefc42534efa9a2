// README: Observable event payloads emitted by the engine.
package dispatch

import (
	"time"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// Payloads are delivered with identical shape to every group an event
// targets; staff see exactly what the customer sees.

type OrderCreatedPayload struct {
	OrderID  types.ID      `json:"order_id"`
	Number   string        `json:"order_number"`
	TenantID types.ID      `json:"tenant_id"`
	Channel  order.Channel `json:"channel"`
	Status   order.Status  `json:"status"`
	Total    types.Money   `json:"total"`
}

type OrderStatusPayload struct {
	OrderID types.ID     `json:"order_id"`
	Status  order.Status `json:"status"`
	RiderID *types.ID    `json:"rider_id,omitempty"`
}

type RiderLocationPayload struct {
	OrderID   types.ID  `json:"order_id"`
	RiderID   types.ID  `json:"rider_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type TableStatusPayload struct {
	TableID types.ID `json:"table_id"`
	Status  string   `json:"status"`
}

type ChatPayload struct {
	OrderID    types.ID  `json:"order_id"`
	SenderID   types.ID  `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
