package dto

import (
	"time"

	"github.com/spec-kit/sr-service/internal/domain"
)

// CreateSRRequest payload.
type CreateSRRequest struct {
	Category      string `json:"category"`
	AccountNumber string `json:"account_number"`
	SRNature      string `json:"sr_nature"`
	SRType        string `json:"sr_type"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CommentRequest payload.
type CommentRequest struct {
	Comment    string `json:"comment"`
	IsInternal bool   `json:"is_internal"`
}

// SRSummary response.
type SRSummary struct {
	ID         string            `json:"id"`
	SRNumber   string            `json:"sr_number"`
	Category   domain.SRCategory `json:"category"`
	Subject    string            `json:"subject"`
	Status     domain.StatusCode `json:"status"`
	AssignedTo *string           `json:"assigned_to,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	ClosedAt   *time.Time        `json:"closed_at,omitempty"`
}

// SRDetailResponse provides full request info.
type SRDetailResponse struct {
	ID            string              `json:"id"`
	SRNumber      string              `json:"sr_number"`
	Category      domain.SRCategory   `json:"category"`
	NatureID      string              `json:"sr_nature_id"`
	TypeID        string              `json:"sr_type_id"`
	Subject       string              `json:"subject"`
	Description   string              `json:"description"`
	TATID         *string             `json:"tat_id,omitempty"`
	AccountNumber *string             `json:"account_number,omitempty"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Address       *string             `json:"address,omitempty"`
	CreatedBy     *string             `json:"created_by,omitempty"`
	AssignedTo    *string             `json:"assigned_to,omitempty"`
	ClosedBy      *string             `json:"closed_by,omitempty"`
	Status        domain.StatusCode   `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ClosedAt      *time.Time          `json:"closed_at,omitempty"`
	Comments      []SRCommentResponse `json:"comments"`
}

// SRCommentResponse response.
type SRCommentResponse struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"user_id,omitempty"`
	Comment    string    `json:"comment"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusCountsResponse summarizes the staff listing.
type StatusCountsResponse struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"in_progress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
}

// MasterDataResponse bundles the active master sets.
type MasterDataResponse struct {
	Natures  []MasterRowResponse `json:"natures"`
	Types    []MasterRowResponse `json:"types"`
	Statuses []MasterRowResponse `json:"statuses"`
}

// MasterRowResponse is one reference row.
type MasterRowResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// AutoAllotResponse summarizes a TAT backfill run.
type AutoAllotResponse struct {
	PairsCreated int `json:"pairs_created"`
	PairsTotal   int `json:"pairs_total"`
}
