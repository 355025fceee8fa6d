package domain

import "time"

// Location is the resolver output for one end of a ride. It is stored as
// received; coordinates are not re-derived from the address.
type Location struct {
	Address     string  `json:"address"`
	DisplayName string  `json:"display_name,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type Ride struct {
	ID             string
	CreatorID      string
	Origin         Location
	Destination    Location
	DepartureTime  time.Time
	SeatsOffered   int
	SeatsRemaining int
	PriceCents     int64
	Restricted     bool
	Remark         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SeatsTaken is the number of seats held by approved requests.
func (r *Ride) SeatsTaken() int {
	return r.SeatsOffered - r.SeatsRemaining
}

func (r *Ride) IsCreator(userID string) bool {
	return userID != "" && r.CreatorID == userID
}

// RideFilter narrows a ride search. Empty fields match everything.
type RideFilter struct {
	From  string
	To    string
	After time.Time
}
