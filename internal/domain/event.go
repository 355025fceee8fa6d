package domain

import "time"

type EventType string

const (
	EventRideCreated      EventType = "ride_created"
	EventRideDeleted      EventType = "ride_deleted"
	EventRequestSubmitted EventType = "request_submitted"
	EventRequestApproved  EventType = "request_approved"
	EventRequestRejected  EventType = "request_rejected"
	EventRequestExpired   EventType = "request_expired"
)

// RideEvent is what the notification emitter carries. Recipient is the user
// the event is addressed to.
type RideEvent struct {
	Type           EventType     `json:"type"`
	RideID         string        `json:"ride_id"`
	RequestID      string        `json:"request_id,omitempty"`
	RequesterID    string        `json:"requester_id,omitempty"`
	Recipient      string        `json:"recipient"`
	Status         RequestStatus `json:"status,omitempty"`
	SeatsRemaining int           `json:"seats_remaining"`
	DepartureTime  time.Time     `json:"departure_time"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
