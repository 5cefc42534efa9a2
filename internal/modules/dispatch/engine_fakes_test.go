// README: In-memory collaborator fakes for engine tests.
package dispatch

import (
	"context"
	"sync"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/location"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/table"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[types.ID]*order.Order
	events []order.Event
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[types.ID]*order.Order)}
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id types.ID, from, to order.Status, version int, reason *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || o.StatusVersion != version {
		return false, nil
	}
	o.Status = to
	o.StatusVersion++
	if reason != nil {
		o.CancelReason = reason
	}
	return true, nil
}

func (m *memOrders) AssignRider(_ context.Context, id, riderID types.ID, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.RiderID != nil || o.StatusVersion != version {
		return false, nil
	}
	rid := riderID
	o.RiderID = &rid
	o.StatusVersion++
	return true, nil
}

func (m *memOrders) ClearRider(_ context.Context, id, riderID types.ID, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.RiderID == nil || *o.RiderID != riderID || o.StatusVersion != version {
		return false, nil
	}
	o.RiderID = nil
	o.StatusVersion++
	return true, nil
}

func (m *memOrders) AddItems(_ context.Context, id types.ID, items []order.Item, newTotal types.Money, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || order.Terminal(o.Status) || o.StatusVersion != version {
		return false, nil
	}
	o.Items = append(o.Items, items...)
	o.Total = newTotal
	o.StatusVersion++
	return true, nil
}

func (m *memOrders) AppendEvent(_ context.Context, e *order.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

type memRiders struct {
	mu     sync.Mutex
	riders map[types.ID]*rider.Rider
}

func newMemRiders() *memRiders {
	return &memRiders{riders: make(map[types.ID]*rider.Rider)}
}

func (m *memRiders) add(r rider.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[r.ID] = &r
}

func (m *memRiders) Get(_ context.Context, id types.ID) (*rider.Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return nil, rider.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRiders) SetAvailability(_ context.Context, id types.ID, available bool, presence rider.Presence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return rider.ErrNotFound
	}
	r.Available = available
	r.Presence = presence
	return nil
}

func (m *memRiders) UpdatePosition(_ context.Context, id, _ types.ID, p types.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return rider.ErrNotFound
	}
	r.Position = p
	return nil
}

type memPings struct {
	mu    sync.Mutex
	pings []location.Ping
}

func (m *memPings) Append(_ context.Context, p *location.Ping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings = append(m.pings, *p)
	return nil
}

type memTables struct {
	mu     sync.Mutex
	tables map[types.ID]*table.Table
}

func newMemTables() *memTables {
	return &memTables{tables: make(map[types.ID]*table.Table)}
}

func (m *memTables) add(t table.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.ID] = &t
}

func (m *memTables) Get(_ context.Context, id types.ID) (*table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tb, ok := m.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	cp := *tb
	return &cp, nil
}

func (m *memTables) SetStatus(_ context.Context, id types.ID, status table.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tb, ok := m.tables[id]
	if !ok {
		return table.ErrNotFound
	}
	tb.Status = status
	return nil
}

// stubAccess lets tests simulate frozen tenants and superseded sessions.
type stubAccess struct {
	err error
}

func (s *stubAccess) Check(context.Context, *auth.Principal) error { return s.err }

// capturedEmit records one fan-out call.
type capturedEmit struct {
	event  *stream.Event
	groups []string
}

type memRouter struct {
	mu    sync.Mutex
	emits []capturedEmit
	joins map[string][]string
}

func newMemRouter() *memRouter {
	return &memRouter{joins: make(map[string][]string)}
}

func (m *memRouter) Emit(evt *stream.Event, groups ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emits = append(m.emits, capturedEmit{event: evt, groups: groups})
}

func (m *memRouter) Join(connID string, groups ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins[connID] = append(m.joins[connID], groups...)
}

func (m *memRouter) lastEmit() *capturedEmit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emits) == 0 {
		return nil
	}
	return &m.emits[len(m.emits)-1]
}

func (m *memRouter) emitsOf(name stream.EventName) []capturedEmit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []capturedEmit
	for _, e := range m.emits {
		if e.event.Name == name {
			out = append(out, e)
		}
	}
	return out
}
