package domain

import "time"

// SRCategory distinguishes account-linked requests from anonymous ones.
type SRCategory string

const (
	CategoryParented   SRCategory = "parented"
	CategoryUnparented SRCategory = "unparented"
)

// Valid reports whether the category is one of the two known values.
func (c SRCategory) Valid() bool {
	return c == CategoryParented || c == CategoryUnparented
}

// StatusCode enumerates the canonical SR lifecycle states. These codes
// mirror the rows seeded into sr_statuses.
type StatusCode string

const (
	StatusOpen       StatusCode = "OPEN"
	StatusInProgress StatusCode = "IN_PROGRESS"
	StatusResolved   StatusCode = "RESOLVED"
	StatusClosed     StatusCode = "CLOSED"
)

// ServiceRequest is the aggregate for customer grievances and requests.
type ServiceRequest struct {
	ID            string
	SRNumber      string
	Category      SRCategory
	NatureID      string
	TypeID        string
	Subject       string
	Description   string
	TATID         *string
	AccountNumber *string
	Email         string
	Phone         string
	Address       *string
	CreatedBy     *string
	AssignedTo    *string
	ClosedBy      *string
	StatusID      string
	StatusCode    StatusCode
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}
