// README: Per-connection subscriber with a buffered, drop-on-full channel.
package stream

import "sync"

// Subscriber is the delivery endpoint for one live connection. Sends are
// non-blocking; when the buffer is full the event is dropped, honouring the
// at-most-once contract.
type Subscriber struct {
	id string
	ch chan *Event

	groups map[string]struct{}
	mu     sync.RWMutex

	// chMu serializes sends against Close so a concurrent broadcast can
	// never write to a closed channel.
	chMu   sync.Mutex
	closed bool
}

func newSubscriber(id string, bufferSize int) *Subscriber {
	return &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		groups: make(map[string]struct{}),
	}
}

// ID returns the connection identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only event channel drained by the connection's write pump.
func (s *Subscriber) C() <-chan *Event { return s.ch }

func (s *Subscriber) addGroup(group string) {
	s.mu.Lock()
	s.groups[group] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeGroup(group string) {
	s.mu.Lock()
	delete(s.groups, group)
	s.mu.Unlock()
}

// Groups returns a copy of the group keys this subscriber is in.
func (s *Subscriber) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	return out
}

// send attempts delivery. Returns false when the subscriber is closed or its
// buffer is full.
func (s *Subscriber) send(evt *Event) bool {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// Close closes the event channel. Safe to call more than once.
func (s *Subscriber) Close() {
	s.chMu.Lock()
	defer s.chMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
