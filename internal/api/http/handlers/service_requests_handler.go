package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sr-service/internal/api/dto"
	"github.com/spec-kit/sr-service/internal/auth"
	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/repository"
	"github.com/spec-kit/sr-service/internal/service"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ServiceRequestsHandler exposes the customer-facing SR endpoints.
type ServiceRequestsHandler struct {
	srService *service.SRService
}

// NewServiceRequestsHandler returns a new handler instance.
func NewServiceRequestsHandler(srService *service.SRService) *ServiceRequestsHandler {
	return &ServiceRequestsHandler{srService: srService}
}

// Create registers a new service request for the caller.
func (h *ServiceRequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateSRRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	sr, err := h.srService.Create(c.UserContext(), principal.User, service.SRCreateInput{
		Category:      req.Category,
		AccountNumber: req.AccountNumber,
		NatureCode:    req.SRNature,
		TypeCode:      req.SRType,
		Subject:       req.Subject,
		Description:   req.Description,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toSRDetail(sr, nil))
}

// List returns the caller's own requests, newest first by default.
func (h *ServiceRequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := filterFromQuery(c)
	requests, err := h.srService.ListForUser(c.UserContext(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"service_requests": toSummaries(requests),
		"limit":            filter.Limit,
		"offset":           filter.Offset,
	})
}

// Get returns one request with its visible comment trail.
func (h *ServiceRequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	srID := c.Params("id")
	sr, err := h.srService.GetForViewer(c.UserContext(), principal.User, srID)
	if err != nil {
		return err
	}
	comments, err := h.srService.ListComments(c.UserContext(), principal.User, srID)
	if err != nil {
		return err
	}
	return c.JSON(toSRDetail(sr, comments))
}

// AddComment appends an entry to the request's comment trail.
func (h *ServiceRequestsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	comment, err := h.srService.AddComment(c.UserContext(), principal.User, c.Params("id"), req.Comment, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toComment(comment))
}

// ListCommentsOnly returns the visible comment trail for a request.
func (h *ServiceRequestsHandler) ListCommentsOnly(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	comments, err := h.srService.ListComments(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]dto.SRCommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, toComment(&comments[i]))
	}
	return c.JSON(fiber.Map{"comments": out})
}

func filterFromQuery(c *fiber.Ctx) repository.SRFilter {
	filter := repository.SRFilter{
		SortBy: c.Query("sort_by"),
		Limit:  c.QueryInt("limit", defaultPageSize),
		Offset: c.QueryInt("offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if status := c.Query("status"); status != "" {
		code := domain.StatusCode(status)
		filter.StatusCode = &code
	}
	if category := c.Query("category"); category != "" {
		cat := domain.SRCategory(category)
		filter.Category = &cat
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	return filter
}

func toSummaries(requests []domain.ServiceRequest) []dto.SRSummary {
	out := make([]dto.SRSummary, 0, len(requests))
	for i := range requests {
		sr := &requests[i]
		out = append(out, dto.SRSummary{
			ID:         sr.ID,
			SRNumber:   sr.SRNumber,
			Category:   sr.Category,
			Subject:    sr.Subject,
			Status:     sr.StatusCode,
			AssignedTo: sr.AssignedTo,
			CreatedAt:  sr.CreatedAt,
			UpdatedAt:  sr.UpdatedAt,
			ClosedAt:   sr.ClosedAt,
		})
	}
	return out
}

func toSRDetail(sr *domain.ServiceRequest, comments []domain.SRComment) dto.SRDetailResponse {
	out := dto.SRDetailResponse{
		ID:            sr.ID,
		SRNumber:      sr.SRNumber,
		Category:      sr.Category,
		NatureID:      sr.NatureID,
		TypeID:        sr.TypeID,
		Subject:       sr.Subject,
		Description:   sr.Description,
		TATID:         sr.TATID,
		AccountNumber: sr.AccountNumber,
		Email:         sr.Email,
		Phone:         sr.Phone,
		Address:       sr.Address,
		CreatedBy:     sr.CreatedBy,
		AssignedTo:    sr.AssignedTo,
		ClosedBy:      sr.ClosedBy,
		Status:        sr.StatusCode,
		CreatedAt:     sr.CreatedAt,
		UpdatedAt:     sr.UpdatedAt,
		ClosedAt:      sr.ClosedAt,
		Comments:      make([]dto.SRCommentResponse, 0, len(comments)),
	}
	for i := range comments {
		out.Comments = append(out.Comments, toComment(&comments[i]))
	}
	return out
}

func toComment(comment *domain.SRComment) dto.SRCommentResponse {
	return dto.SRCommentResponse{
		ID:         comment.ID,
		UserID:     comment.UserID,
		Comment:    comment.Comment,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt,
	}
}
