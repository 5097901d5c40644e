package events

import (
	"time"

	"github.com/spec-kit/sr-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSRCreated       EventType = "sr_created"
	EventSRStatusChanged EventType = "sr_status_changed"
	EventSRAssigned      EventType = "sr_assigned"
	EventSRCommentAdded  EventType = "sr_comment_added"
	EventTATAutoAllotted EventType = "tat_auto_allotted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID *string         `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID               string      `json:"id"`
	Type             EventType   `json:"type"`
	ServiceRequestID string      `json:"service_request_id,omitempty"`
	Actor            Actor       `json:"actor"`
	Timestamp        time.Time   `json:"timestamp"`
	Payload          interface{} `json:"payload"`
}

// SRCreatedPayload payload.
type SRCreatedPayload struct {
	SRNumber   string            `json:"sr_number"`
	Category   domain.SRCategory `json:"category"`
	NatureCode string            `json:"nature_code"`
	TypeCode   string            `json:"type_code"`
	Subject    string            `json:"subject"`
	TATDays    *int              `json:"tat_days,omitempty"`
}

// SRStatusChangedPayload payload.
type SRStatusChangedPayload struct {
	OldStatus domain.StatusCode `json:"old_status"`
	NewStatus domain.StatusCode `json:"new_status"`
	Notes     string            `json:"notes,omitempty"`
}

// SRAssignedPayload payload.
type SRAssignedPayload struct {
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// SRCommentAddedPayload payload.
type SRCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	IsInternal  bool   `json:"is_internal"`
	BodyPreview string `json:"body_preview"`
}

// TATAutoAllottedPayload payload.
type TATAutoAllottedPayload struct {
	PairsCreated int `json:"pairs_created"`
	PairsTotal   int `json:"pairs_total"`
}
