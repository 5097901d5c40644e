package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sr-service/internal/api/dto"
	"github.com/spec-kit/sr-service/internal/auth"
	"github.com/spec-kit/sr-service/internal/service"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// UsersHandler exposes account endpoints.
type UsersHandler struct {
	authService *service.AuthService
}

// NewUsersHandler returns a new handler instance.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{authService: authService}
}

// Register creates a customer account and issues a token.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	errs := map[string]any{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "Name is required"
	}
	if strings.TrimSpace(req.Email) == "" {
		errs["email"] = "Email is required"
	}
	if len(req.Password) < 8 {
		errs["password"] = "Password must be at least 8 characters"
	}
	if len(errs) > 0 {
		return apperrors.NewValidationError("validation failed", errs)
	}

	_, token, exp, err := h.authService.Register(c.UserContext(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{Token: token, ExpiresAt: exp})
}

// Login authenticates a user and issues a token.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"credentials": "Email and password are required",
		})
	}

	_, token, exp, err := h.authService.Login(c.UserContext(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{Token: token, ExpiresAt: exp})
}

// ChangePassword rotates the caller's password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.CurrentPassword == "" {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"current_password": "Current password is required",
		})
	}
	if len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"new_password": "Password must be at least 8 characters",
		})
	}

	if err := h.authService.ChangePassword(c.UserContext(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}
