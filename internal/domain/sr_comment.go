package domain

import "time"

// SRComment is an append-only note on a service request. Internal
// comments are hidden from the requesting customer.
type SRComment struct {
	ID               string
	ServiceRequestID string
	UserID           *string
	Comment          string
	IsInternal       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
