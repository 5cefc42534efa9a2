// README: Connection router; owns group membership and event delivery.
package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default per-connection event buffer.
const DefaultBufferSize = 256

// Router maintains the mapping from live connections to the topic groups
// they receive events for, and delivers computed events to every connection
// in the target groups. Delivery is fire-and-forget.
type Router struct {
	registry *registry
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*Subscriber

	totalDelivered atomic.Int64
	totalDropped   atomic.Int64

	bufferSize int
}

type RouterOption func(*Router)

// WithBufferSize sets the per-connection event buffer size.
func WithBufferSize(size int) RouterOption {
	return func(r *Router) { r.bufferSize = size }
}

func NewRouter(logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		registry:   newRegistry(),
		logger:     logger,
		conns:      make(map[string]*Subscriber),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a subscriber for a new connection and joins it to its
// initial groups (the principal's private group, plus the tenant group for
// staff and admin connections).
func (r *Router) Register(connID string, groups ...string) *Subscriber {
	sub := newSubscriber(connID, r.bufferSize)
	r.mu.Lock()
	r.conns[connID] = sub
	r.mu.Unlock()
	for _, g := range groups {
		r.registry.join(g, sub)
	}
	return sub
}

// Join adds an existing connection to another group, e.g. on an explicit
// watch-this-order request.
func (r *Router) Join(connID string, groups ...string) {
	r.mu.Lock()
	sub, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		return
	}
	for _, g := range groups {
		r.registry.join(g, sub)
	}
}

// Leave removes a connection from specific groups.
func (r *Router) Leave(connID string, groups ...string) {
	for _, g := range groups {
		r.registry.leave(g, connID)
	}
}

// Remove drops a connection from every group and closes its subscriber.
func (r *Router) Remove(connID string) {
	r.registry.leaveAll(connID)
	r.mu.Lock()
	sub, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Emit delivers one event to every connection across the target groups.
// Connections present in more than one group receive the event once.
// There is no acknowledgment, retry, or persistence.
func (r *Router) Emit(evt *Event, groups ...string) {
	delivered, dropped := r.registry.broadcast(groups, evt)
	r.totalDelivered.Add(int64(delivered))
	if dropped > 0 {
		r.totalDropped.Add(int64(dropped))
		r.logger.Warn("stream: dropped events",
			"event", string(evt.Name), "dropped", dropped)
	}
}

// EmitTo delivers an event to a single connection, e.g. an error frame in
// response to a bad live-channel request.
func (r *Router) EmitTo(connID string, evt *Event) {
	r.mu.Lock()
	sub, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if sub.send(evt) {
		r.totalDelivered.Add(1)
	} else {
		r.totalDropped.Add(1)
	}
}

// Stats returns router counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	conns := len(r.conns)
	r.mu.Unlock()
	return Stats{
		Connections:    conns,
		Groups:         r.registry.groupCount(),
		TotalDelivered: r.totalDelivered.Load(),
		TotalDropped:   r.totalDropped.Load(),
	}
}

// MemberCount returns the number of connections in a group.
func (r *Router) MemberCount(group string) int {
	return r.registry.memberCount(group)
}

// Shutdown closes every subscriber.
func (r *Router) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.conns {
		r.registry.leaveAll(id)
		sub.Close()
		delete(r.conns, id)
	}
	r.logger.Info("stream router shut down")
}

// Stats contains router metrics.
type Stats struct {
	Connections    int   `json:"connections"`
	Groups         int   `json:"groups"`
	TotalDelivered int64 `json:"total_delivered"`
	TotalDropped   int64 `json:"total_dropped"`
}
