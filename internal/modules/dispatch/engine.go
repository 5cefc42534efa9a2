// README: Dispatch engine; owns the order state machine, assignment rules, and fan-out.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/location"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/table"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// OrderStore is the engine's only persistence dependency for orders. Every
// write is a single-statement compare-and-set; no cross-call transaction is
// assumed.
type OrderStore interface {
	Create(ctx context.Context, o *order.Order) error
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to order.Status, version int, reason *string) (bool, error)
	AssignRider(ctx context.Context, id, riderID types.ID, version int) (bool, error)
	ClearRider(ctx context.Context, id, riderID types.ID, version int) (bool, error)
	AddItems(ctx context.Context, id types.ID, items []order.Item, newTotal types.Money, version int) (bool, error)
	AppendEvent(ctx context.Context, e *order.Event) error
}

// RiderDirectory tracks rider availability and last-known position.
type RiderDirectory interface {
	Get(ctx context.Context, id types.ID) (*rider.Rider, error)
	SetAvailability(ctx context.Context, id types.ID, available bool, presence rider.Presence) error
	UpdatePosition(ctx context.Context, id, tenantID types.ID, p types.Point) error
}

// PingStore appends immutable location history.
type PingStore interface {
	Append(ctx context.Context, p *location.Ping) error
}

// TableStore flips dine-in table occupancy.
type TableStore interface {
	Get(ctx context.Context, id types.ID) (*table.Table, error)
	SetStatus(ctx context.Context, id types.ID, status table.Status) error
}

// Access re-validates session epoch and tenant freeze for a principal.
type Access interface {
	Check(ctx context.Context, p *auth.Principal) error
}

// Publisher delivers events to topic groups and manages on-demand joins.
type Publisher interface {
	Emit(evt *stream.Event, groups ...string)
	Join(connID string, groups ...string)
}

type Engine struct {
	orders OrderStore
	riders RiderDirectory
	pings  PingStore
	tables TableStore
	access Access
	router Publisher
	logger *slog.Logger
}

func NewEngine(
	orders OrderStore,
	riders RiderDirectory,
	pings PingStore,
	tables TableStore,
	access Access,
	router Publisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		orders: orders,
		riders: riders,
		pings:  pings,
		tables: tables,
		access: access,
		router: router,
		logger: logger,
	}
}

type ItemSpec struct {
	MenuItemID types.ID
	Name       string
	UnitPrice  types.Money
	Quantity   int
	AddOns     []order.AddOn
}

type CreateCommand struct {
	CustomerID *types.ID // nil for staff-entered walk-in / dine-in orders
	Channel    order.Channel
	TableID    *types.ID
	Dropoff    types.Point
	Items      []ItemSpec
}

// CreateOrder creates an order from a customer checkout or a staff dine-in
// action. Dine-in creation marks the table occupied.
func (e *Engine) CreateOrder(ctx context.Context, p *auth.Principal, cmd CreateCommand) (*order.Order, error) {
	if err := e.access.Check(ctx, p); err != nil {
		return nil, err
	}
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", ErrValidation)
	}
	for _, it := range cmd.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
	}

	switch p.Role {
	case auth.RoleCustomer:
		if cmd.Channel == order.ChannelDineIn {
			return nil, fmt.Errorf("%w: dine-in orders are staff-entered", ErrAccessDenied)
		}
		id := p.ID
		cmd.CustomerID = &id
	case auth.RoleStaff, auth.RoleAdmin:
		// Staff may enter walk-in orders with no customer on record.
	default:
		return nil, fmt.Errorf("%w: role %s cannot create orders", ErrAccessDenied, p.Role)
	}
	if cmd.Channel == order.ChannelDineIn {
		if cmd.TableID == nil {
			return nil, fmt.Errorf("%w: dine-in order needs a table", ErrValidation)
		}
		tb, err := e.tables.Get(ctx, *cmd.TableID)
		if err != nil {
			return nil, translateNotFound(err)
		}
		if tb.TenantID != p.TenantID {
			return nil, fmt.Errorf("%w: table belongs to another tenant", ErrAccessDenied)
		}
	}

	items := make([]order.Item, len(cmd.Items))
	for i, it := range cmd.Items {
		items[i] = order.Item{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			AddOns:     it.AddOns,
		}
	}

	now := time.Now()
	o := &order.Order{
		ID:         newID(),
		Number:     newOrderNumber(now),
		TenantID:   p.TenantID,
		CustomerID: cmd.CustomerID,
		Status:     order.StatusPending,
		Channel:    cmd.Channel,
		TableID:    cmd.TableID,
		Total:      order.TotalOf(items),
		Dropoff:    cmd.Dropoff,
		Items:      items,
		CreatedAt:  now,
	}
	if err := e.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	if cmd.Channel == order.ChannelDineIn {
		e.setTableStatus(ctx, o, *cmd.TableID, table.StatusOccupied)
	}

	e.appendAudit(ctx, o.ID, order.StatusNone, order.StatusPending, p)
	e.router.Emit(stream.NewEvent(stream.EventOrderCreated, OrderCreatedPayload{
		OrderID:  o.ID,
		Number:   o.Number,
		TenantID: o.TenantID,
		Channel:  o.Channel,
		Status:   o.Status,
		Total:    o.Total,
	}), e.audiences(o)...)
	return o, nil
}

// ClaimOrder assigns an unassigned order to the calling rider and flips the
// rider unavailable. A second rider claiming the same order loses with
// ErrConflict.
func (e *Engine) ClaimOrder(ctx context.Context, p *auth.Principal, orderID types.ID) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if p.Role != auth.RoleRider {
		return fmt.Errorf("%w: only riders claim orders", ErrAccessDenied)
	}
	r, err := e.riders.Get(ctx, p.ID)
	if err != nil {
		return translateNotFound(err)
	}
	if !r.Active {
		return fmt.Errorf("%w: rider is not activated", ErrAccessDenied)
	}

	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if o.TenantID != r.TenantID {
		return fmt.Errorf("%w: rider belongs to another tenant", ErrAccessDenied)
	}
	if o.RiderID != nil {
		return fmt.Errorf("%w: order already assigned", ErrConflict)
	}
	if !order.Claimable(o.Status) {
		return fmt.Errorf("%w: order in %s is not claimable", ErrConflict, o.Status)
	}

	ok, err := e.orders.AssignRider(ctx, o.ID, p.ID, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order already assigned", ErrConflict)
	}
	if err := e.riders.SetAvailability(ctx, p.ID, false, rider.PresenceBusy); err != nil {
		return err
	}

	e.appendAudit(ctx, o.ID, o.Status, o.Status, p)
	rid := p.ID
	e.router.Emit(stream.NewEvent(stream.EventOrderStatusChanged, OrderStatusPayload{
		OrderID: o.ID,
		Status:  o.Status,
		RiderID: &rid,
	}), e.audiences(o)...)
	return nil
}

// RejectOrder clears the caller's assignment without changing the order
// status, returning it to the unassigned pool, and restores the rider's
// availability. Rejecting an order not assigned to the caller fails with
// ErrConflict rather than silently succeeding.
func (e *Engine) RejectOrder(ctx context.Context, p *auth.Principal, orderID types.ID) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if p.Role != auth.RoleRider {
		return fmt.Errorf("%w: only riders reject assignments", ErrAccessDenied)
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if o.RiderID == nil || *o.RiderID != p.ID {
		return fmt.Errorf("%w: order is not assigned to this rider", ErrConflict)
	}

	ok, err := e.orders.ClearRider(ctx, o.ID, p.ID, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assignment changed concurrently", ErrConflict)
	}
	if err := e.riders.SetAvailability(ctx, p.ID, true, rider.PresenceOnline); err != nil {
		return err
	}

	e.appendAudit(ctx, o.ID, o.Status, o.Status, p)
	e.router.Emit(stream.NewEvent(stream.EventOrderStatusChanged, OrderStatusPayload{
		OrderID: o.ID,
		Status:  o.Status,
	}), e.audiences(o)...)
	return nil
}

// AdvanceStatus moves an order along the allowed transition graph. Staff and
// admins advance any order of their tenant; the assigned rider may advance
// picked_up and delivered. No state may be skipped.
func (e *Engine) AdvanceStatus(ctx context.Context, p *auth.Principal, orderID types.ID, to order.Status) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if to == order.StatusCancelled {
		return fmt.Errorf("%w: use cancel for cancellation", ErrValidation)
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}

	switch p.Role {
	case auth.RoleStaff, auth.RoleAdmin:
		if o.TenantID != p.TenantID {
			return fmt.Errorf("%w: order belongs to another tenant", ErrAccessDenied)
		}
	case auth.RoleRider:
		if o.RiderID == nil || *o.RiderID != p.ID {
			return fmt.Errorf("%w: order is not assigned to this rider", ErrAccessDenied)
		}
		if to != order.StatusPickedUp && to != order.StatusDelivered {
			return fmt.Errorf("%w: riders advance pickup and delivery only", ErrAccessDenied)
		}
	case auth.RoleSuperAdmin:
		// Platform-level access.
	default:
		return fmt.Errorf("%w: role %s cannot advance orders", ErrAccessDenied, p.Role)
	}

	if !order.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s is not a legal transition", ErrConflict, o.Status, to)
	}
	// Delivery orders finish through pickup and delivery; dine-in and
	// takeaway finish through completed.
	if to == order.StatusCompleted && o.Channel == order.ChannelDelivery {
		return fmt.Errorf("%w: delivery orders finish via delivered", ErrConflict)
	}
	if (to == order.StatusPickedUp || to == order.StatusDelivered) && o.Channel != order.ChannelDelivery {
		return fmt.Errorf("%w: %s orders finish via completed", ErrConflict, o.Channel)
	}

	ok, err := e.orders.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order changed concurrently", ErrConflict)
	}

	if order.Terminal(to) {
		e.releaseRider(ctx, o)
		if o.Channel == order.ChannelDineIn && o.TableID != nil {
			e.setTableStatus(ctx, o, *o.TableID, table.StatusAvailable)
		}
	}

	e.appendAudit(ctx, o.ID, o.Status, to, p)
	e.router.Emit(stream.NewEvent(stream.EventOrderStatusChanged, OrderStatusPayload{
		OrderID: o.ID,
		Status:  to,
		RiderID: o.RiderID,
	}), e.audiences(o)...)
	return nil
}

// CancelOrder is a terminal, one-way transition requiring a non-empty reason.
func (e *Engine) CancelOrder(ctx context.Context, p *auth.Principal, orderID types.ID, reason string) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if reason == "" {
		return fmt.Errorf("%w: cancellation needs a reason", ErrValidation)
	}
	switch p.Role {
	case auth.RoleStaff, auth.RoleAdmin, auth.RoleSuperAdmin:
	default:
		return fmt.Errorf("%w: role %s cannot cancel orders", ErrAccessDenied, p.Role)
	}

	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if !p.Role.PlatformWide() && o.TenantID != p.TenantID {
		return fmt.Errorf("%w: order belongs to another tenant", ErrAccessDenied)
	}
	if !order.CanTransition(o.Status, order.StatusCancelled) {
		return fmt.Errorf("%w: order in %s cannot be cancelled", ErrConflict, o.Status)
	}

	ok, err := e.orders.UpdateStatus(ctx, o.ID, o.Status, order.StatusCancelled, o.StatusVersion, &reason)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order changed concurrently", ErrConflict)
	}

	e.releaseRider(ctx, o)
	if o.Channel == order.ChannelDineIn && o.TableID != nil {
		e.setTableStatus(ctx, o, *o.TableID, table.StatusAvailable)
	}

	e.appendAudit(ctx, o.ID, o.Status, order.StatusCancelled, p)
	e.router.Emit(stream.NewEvent(stream.EventOrderStatusChanged, OrderStatusPayload{
		OrderID: o.ID,
		Status:  order.StatusCancelled,
	}), e.audiences(o)...)
	return nil
}

// AddItems appends lines to a pre-terminal order and re-derives the total.
func (e *Engine) AddItems(ctx context.Context, p *auth.Principal, orderID types.ID, specs []ItemSpec) (*order.Order, error) {
	if err := e.access.Check(ctx, p); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: nothing to add", ErrValidation)
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if !e.canView(p, o) || p.Role == auth.RoleRider {
		return nil, fmt.Errorf("%w: cannot modify this order", ErrAccessDenied)
	}
	if order.Terminal(o.Status) {
		return nil, fmt.Errorf("%w: order in %s accepts no more items", ErrConflict, o.Status)
	}

	added := make([]order.Item, len(specs))
	for i, it := range specs {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
		added[i] = order.Item{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			AddOns:     it.AddOns,
		}
	}
	newTotal := order.TotalOf(append(append([]order.Item{}, o.Items...), added...))
	ok, err := e.orders.AddItems(ctx, o.ID, added, newTotal, o.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrConflict)
	}
	return e.orders.Get(ctx, orderID)
}

// RecordLocation persists an immutable ping for the assigned rider, updates
// the rider's current position, and fans the same payload out to the order
// group, the customer's private group, and the tenant group.
func (e *Engine) RecordLocation(ctx context.Context, p *auth.Principal, orderID types.ID, pos types.Point) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if p.Role != auth.RoleRider {
		return fmt.Errorf("%w: only riders report locations", ErrAccessDenied)
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if o.RiderID == nil || *o.RiderID != p.ID {
		return fmt.Errorf("%w: order is not assigned to this rider", ErrAccessDenied)
	}

	now := time.Now()
	ping := &location.Ping{
		OrderID:    o.ID,
		RiderID:    p.ID,
		Position:   pos,
		RecordedAt: now,
	}
	if err := e.pings.Append(ctx, ping); err != nil {
		return err
	}
	if err := e.riders.UpdatePosition(ctx, p.ID, o.TenantID, pos); err != nil {
		return err
	}

	e.router.Emit(stream.NewEvent(stream.EventRiderLocation, RiderLocationPayload{
		OrderID:   o.ID,
		RiderID:   p.ID,
		Lat:       pos.Lat,
		Lng:       pos.Lng,
		Timestamp: now,
	}), e.audiences(o)...)
	return nil
}

// SendMessage fans a chat message out to the order's participants. Messages
// are best-effort and not persisted; the live channel is a convenience path.
func (e *Engine) SendMessage(ctx context.Context, p *auth.Principal, orderID types.ID, text string) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: empty message", ErrValidation)
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if !e.canView(p, o) {
		return fmt.Errorf("%w: not a participant of this order", ErrAccessDenied)
	}

	e.router.Emit(stream.NewEvent(stream.EventChatMessage, ChatPayload{
		OrderID:    o.ID,
		SenderID:   p.ID,
		SenderRole: string(p.Role),
		Text:       text,
		SentAt:     time.Now(),
	}), e.audiences(o)...)
	return nil
}

// WatchOrder joins a live connection to an order's group after checking the
// principal is authorized to view that order.
func (e *Engine) WatchOrder(ctx context.Context, p *auth.Principal, connID string, orderID types.ID) error {
	if err := e.access.Check(ctx, p); err != nil {
		return err
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return translateNotFound(err)
	}
	if !e.canView(p, o) {
		return fmt.Errorf("%w: not authorized to watch this order", ErrAccessDenied)
	}
	e.router.Join(connID, stream.OrderGroup(o.ID))
	return nil
}

// GetOrder is the tenant-scoped read used by the request path.
func (e *Engine) GetOrder(ctx context.Context, p *auth.Principal, orderID types.ID) (*order.Order, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if !e.canView(p, o) {
		return nil, fmt.Errorf("%w: not authorized to view this order", ErrAccessDenied)
	}
	return o, nil
}

// audiences computes the topic groups an order event targets: the order's
// watchers, the tenant's staff, and the owning customer.
func (e *Engine) audiences(o *order.Order) []string {
	groups := []string{stream.OrderGroup(o.ID), stream.TenantGroup(o.TenantID)}
	if o.CustomerID != nil {
		groups = append(groups, stream.PrincipalGroup(*o.CustomerID))
	}
	return groups
}

func (e *Engine) canView(p *auth.Principal, o *order.Order) bool {
	switch p.Role {
	case auth.RoleSuperAdmin:
		return true
	case auth.RoleStaff, auth.RoleAdmin:
		return o.TenantID == p.TenantID
	case auth.RoleCustomer:
		return o.CustomerID != nil && *o.CustomerID == p.ID
	case auth.RoleRider:
		return o.RiderID != nil && *o.RiderID == p.ID
	}
	return false
}

// releaseRider restores availability when an order reaches a terminal state.
// Failures on this path never abort the primary mutation.
func (e *Engine) releaseRider(ctx context.Context, o *order.Order) {
	if o.RiderID == nil {
		return
	}
	if err := e.riders.SetAvailability(ctx, *o.RiderID, true, rider.PresenceOnline); err != nil {
		e.logger.Warn("dispatch: restore rider availability",
			"rider_id", string(*o.RiderID), "err", err)
	}
}

// setTableStatus flips table occupancy and announces it. Table side effects
// are best-effort relative to the primary order mutation.
func (e *Engine) setTableStatus(ctx context.Context, o *order.Order, tableID types.ID, status table.Status) {
	tb, err := e.tables.Get(ctx, tableID)
	if err != nil {
		e.logger.Warn("dispatch: look up table", "table_id", string(tableID), "err", err)
		return
	}
	if tb.TenantID != o.TenantID {
		e.logger.Warn("dispatch: table belongs to another tenant",
			"table_id", string(tableID), "order_id", string(o.ID))
		return
	}
	if err := e.tables.SetStatus(ctx, tableID, status); err != nil {
		e.logger.Warn("dispatch: set table status",
			"table_id", string(tableID), "status", string(status), "err", err)
		return
	}
	e.router.Emit(stream.NewEvent(stream.EventTableStatusChanged, TableStatusPayload{
		TableID: tableID,
		Status:  string(status),
	}), stream.TenantGroup(o.TenantID))
}

// appendAudit writes the fire-and-forget state trail. Failures are logged
// and swallowed; they must never roll back the mutation.
func (e *Engine) appendAudit(ctx context.Context, orderID types.ID, from, to order.Status, p *auth.Principal) {
	actorID := p.ID
	err := e.orders.AppendEvent(ctx, &order.Event{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  string(p.Role),
		ActorID:    &actorID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		e.logger.Warn("dispatch: append audit event",
			"order_id", string(orderID), "err", err)
	}
}

func translateNotFound(err error) error {
	switch err {
	case order.ErrNotFound, rider.ErrNotFound, table.ErrNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

func newOrderNumber(t time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), hex.EncodeToString(b[:]))
}
