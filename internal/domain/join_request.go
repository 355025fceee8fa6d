package domain

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// IsActive reports whether the request still holds or competes for a seat.
// At most one active request may exist per (ride, requester).
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

type JoinRequest struct {
	ID          string
	RideID      string
	RequesterID string
	Status      RequestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RespondedAt *time.Time
}

// RequestView is a join request joined with the requester's profile, as
// shown to the ride creator.
type RequestView struct {
	JoinRequest
	Requester Profile
}
