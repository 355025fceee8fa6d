package domain

import "time"

type Message struct {
	ID        string
	RideID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}
