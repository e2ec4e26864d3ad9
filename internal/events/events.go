// Package events publishes review progress for live observers.
//
// Events are published to subjects of the form:
//   - reviews.{session_id}.phase.changed
//   - reviews.{session_id}.specialist.started
//   - reviews.{session_id}.specialist.settled
//   - reviews.{session_id}.window.opened / .extended / .closed
//   - reviews.{session_id}.dispute.settled
//   - reviews.{session_id}.session.completed / .persisted
//
// Delivery is best effort. Observers that miss an event can always recover the
// full picture from the session's state query.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypePhaseChanged        = "phase.changed"
	TypeSpecialistStarted   = "specialist.started"
	TypeSpecialistCompleted = "specialist.completed"
	TypeSpecialistSettled   = "specialist.settled"
	TypeWindowOpened        = "window.opened"
	TypeWindowExtended      = "window.extended"
	TypeWindowClosed        = "window.closed"
	TypeDisputeSettled      = "dispute.settled"
	TypeSessionCompleted    = "session.completed"
	TypeSessionPersisted    = "session.persisted"
)

// Event is one progress notification for a session.
type Event struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to observers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
