// README: Topic-group registry mapping group keys to live subscribers.
package stream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// Group keys follow a pattern:
//
//	principal:<id>  — one principal's private group
//	tenant:<id>     — all staff/admin connections of a tenant
//	order:<id>      — explicit watchers of one order

func PrincipalGroup(id types.ID) string { return "principal:" + string(id) }
func TenantGroup(id types.ID) string    { return "tenant:" + string(id) }
func OrderGroup(id types.ID) string     { return "order:" + string(id) }

// ParseGroup splits a group key into its kind and entity id.
func ParseGroup(key string) (kind, id string) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", ""
	}
	return key[:idx], key[idx+1:]
}

// ValidateGroup checks a group key shape.
func ValidateGroup(key string) error {
	kind, id := ParseGroup(key)
	if kind == "" || id == "" {
		return fmt.Errorf("stream: invalid group %q", key)
	}
	switch kind {
	case "principal", "tenant", "order":
		return nil
	default:
		return fmt.Errorf("stream: unknown group kind %q", kind)
	}
}

// registry manages subscriber sets per group. Safe for concurrent use.
type registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Subscriber // group → connID → subscriber
}

func newRegistry() *registry {
	return &registry{groups: make(map[string]map[string]*Subscriber)}
}

func (r *registry) join(group string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.groups[group]
	if !ok {
		subs = make(map[string]*Subscriber)
		r.groups[group] = subs
	}
	subs[sub.ID()] = sub
	sub.addGroup(group)
}

func (r *registry) leave(group, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.groups[group]
	if !ok {
		return
	}
	if sub, exists := subs[connID]; exists {
		sub.removeGroup(group)
		delete(subs, connID)
	}
	if len(subs) == 0 {
		delete(r.groups, group)
	}
}

func (r *registry) leaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for group, subs := range r.groups {
		if sub, ok := subs[connID]; ok {
			sub.removeGroup(group)
			delete(subs, connID)
		}
		if len(subs) == 0 {
			delete(r.groups, group)
		}
	}
}

// broadcast sends an event to every subscriber across the given groups,
// deduplicating connections that sit in more than one of them. Returns
// delivered and dropped counts.
func (r *registry) broadcast(groups []string, evt *Event) (delivered, dropped int) {
	r.mu.RLock()
	seen := make(map[string]*Subscriber)
	for _, g := range groups {
		for id, sub := range r.groups[g] {
			seen[id] = sub
		}
	}
	r.mu.RUnlock()

	for _, sub := range seen {
		if sub.send(evt) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

func (r *registry) groupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}

func (r *registry) memberCount(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}
