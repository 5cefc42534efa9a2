// README: Order aggregate, item, and status-graph definitions.
package order

import (
	"time"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Channel string

const (
	ChannelDelivery Channel = "delivery"
	ChannelDineIn   Channel = "dine_in"
	ChannelTakeaway Channel = "takeaway"
)

type Order struct {
	ID            types.ID
	Number        string
	TenantID      types.ID
	CustomerID    *types.ID // nil for staff-entered walk-in / dine-in orders
	RiderID       *types.ID
	Status        Status
	StatusVersion int
	Channel       Channel
	TableID       *types.ID
	Total         types.Money
	Dropoff       types.Point
	CancelReason  *string
	Items         []Item
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	ReadyAt       *time.Time
	PickedUpAt    *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
}

// Item is an order line. Name and unit price are snapshots taken when the
// item is locked in; later menu edits do not change past orders.
type Item struct {
	ID         int64
	OrderID    types.ID
	MenuItemID types.ID
	Name       string
	UnitPrice  types.Money
	Quantity   int
	AddOns     []AddOn
}

type AddOn struct {
	Name  string      `json:"name"`
	Price types.Money `json:"price"`
}

// Event is one row of the append-only order state audit trail.
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the order status flow as code. Delivery
// orders end at delivered; dine-in and takeaway orders end at completed.
// Cancellation is reachable from every non-terminal state.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusPickedUp, StatusCompleted, StatusCancelled},
	StatusPickedUp:  {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further item or status mutation is permitted.
func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCompleted || s == StatusCancelled
}

// Claimable reports whether an unassigned order in this status may be claimed
// by a rider.
func Claimable(s Status) bool {
	return s == StatusAccepted || s == StatusPreparing || s == StatusReady
}

// Subtotal is the item price times quantity plus selected add-ons.
func (i Item) Subtotal() types.Money {
	sub := i.UnitPrice.Mul(i.Quantity)
	for _, a := range i.AddOns {
		sub = sub.Add(a.Price.Mul(i.Quantity))
	}
	return sub
}

// TotalOf sums item subtotals. The stored order total is always this sum at
// the time items were locked in.
func TotalOf(items []Item) types.Money {
	var total types.Money
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
