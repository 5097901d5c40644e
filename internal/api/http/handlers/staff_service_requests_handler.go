package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sr-service/internal/api/dto"
	"github.com/spec-kit/sr-service/internal/auth"
	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/service"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// StaffServiceRequestsHandler exposes the staff-side SR endpoints.
type StaffServiceRequestsHandler struct {
	srService *service.SRService
}

// NewStaffServiceRequestsHandler returns a new handler instance.
func NewStaffServiceRequestsHandler(srService *service.SRService) *StaffServiceRequestsHandler {
	return &StaffServiceRequestsHandler{srService: srService}
}

// List returns filtered requests across all customers plus status counts.
func (h *StaffServiceRequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := filterFromQuery(c)
	if assignee := c.Query("assigned_to"); assignee != "" {
		if assignee == "me" {
			filter.AssignedTo = &principal.User.ID
		} else {
			filter.AssignedTo = &assignee
		}
	}
	if creator := c.Query("created_by"); creator != "" {
		filter.CreatedBy = &creator
	}
	if from, err := parseDateParam(c.Query("created_from")); err != nil {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"created_from": "Date must be in YYYY-MM-DD or RFC3339 format",
		})
	} else if from != nil {
		filter.CreatedFrom = from
	}
	if to, err := parseDateParam(c.Query("created_to")); err != nil {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"created_to": "Date must be in YYYY-MM-DD or RFC3339 format",
		})
	} else if to != nil {
		filter.CreatedTo = to
	}

	requests, counts, err := h.srService.ListForStaff(c.UserContext(), principal.User, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"service_requests": toSummaries(requests),
		"counts": dto.StatusCountsResponse{
			Total:      counts.Total,
			Open:       counts.Open,
			InProgress: counts.InProgress,
			Resolved:   counts.Resolved,
			Closed:     counts.Closed,
		},
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// GetByNumber fetches a request by its public SR number.
func (h *StaffServiceRequestsHandler) GetByNumber(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	sr, err := h.srService.GetBySRNumber(c.UserContext(), principal.User, c.Params("srNumber"))
	if err != nil {
		return err
	}
	return c.JSON(toSRDetail(sr, nil))
}

// Transition moves a request to a new lifecycle state.
func (h *StaffServiceRequestsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"status": "Status is required",
		})
	}

	sr, err := h.srService.Transition(c.UserContext(), principal.User, c.Params("id"), domain.StatusCode(req.Status), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(toSRDetail(sr, nil))
}

// Assign takes the request for the calling staff member.
func (h *StaffServiceRequestsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	sr, err := h.srService.Assign(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toSRDetail(sr, nil))
}
