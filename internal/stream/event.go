// Package stream provides the best-effort fan-out layer for live order
// updates. Delivery is at-most-once: the order store remains the source of
// truth and a reconnecting client re-fetches state instead of replaying
// missed events.
package stream

import (
	"encoding/json"
	"time"
)

// EventName identifies the kind of update being fanned out.
type EventName string

const (
	EventOrderCreated       EventName = "newOrderCreated"
	EventOrderStatusChanged EventName = "orderStatusChanged"
	EventRiderLocation      EventName = "riderLocationUpdated"
	EventTableStatusChanged EventName = "tableStatusChanged"
	EventChatMessage        EventName = "chatMessage"
	EventError              EventName = "error"
)

// Event is the envelope delivered to every connection in a targeted group.
// The same shape goes to all recipients; there is no per-audience filtering.
type Event struct {
	Name      EventName       `json:"event"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent marshals a payload into an event envelope. A marshal failure is a
// programming error in the payload type.
func NewEvent(name EventName, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("stream: marshal event payload: " + err.Error())
	}
	return &Event{Name: name, Timestamp: time.Now().UTC(), Data: data}
}
