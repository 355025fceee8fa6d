package domain

import "time"

type Profile struct {
	UserID    string
	FullName  string
	Phone     string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
