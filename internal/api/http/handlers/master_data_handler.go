package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sr-service/internal/api/dto"
	"github.com/spec-kit/sr-service/internal/service"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// MasterDataHandler serves reference data and admin TAT maintenance.
type MasterDataHandler struct {
	masterData *service.MasterDataService
	tatService *service.TATService
	tatPool    []int
}

// NewMasterDataHandler returns a new handler instance. tatPool is the
// configured default for auto-allotment.
func NewMasterDataHandler(masterData *service.MasterDataService, tatService *service.TATService, tatPool []int) *MasterDataHandler {
	return &MasterDataHandler{masterData: masterData, tatService: tatService, tatPool: tatPool}
}

// List returns the active nature, type and status master sets.
func (h *MasterDataHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()

	natures, err := h.masterData.ListNatures(ctx)
	if err != nil {
		return err
	}
	types, err := h.masterData.ListTypes(ctx)
	if err != nil {
		return err
	}
	statuses, err := h.masterData.ListStatuses(ctx)
	if err != nil {
		return err
	}

	out := dto.MasterDataResponse{
		Natures:  make([]dto.MasterRowResponse, 0, len(natures)),
		Types:    make([]dto.MasterRowResponse, 0, len(types)),
		Statuses: make([]dto.MasterRowResponse, 0, len(statuses)),
	}
	for _, row := range natures {
		out.Natures = append(out.Natures, dto.MasterRowResponse{ID: row.ID, Code: row.Code, Name: row.Name})
	}
	for _, row := range types {
		out.Types = append(out.Types, dto.MasterRowResponse{ID: row.ID, Code: row.Code, Name: row.Name})
	}
	for _, row := range statuses {
		out.Statuses = append(out.Statuses, dto.MasterRowResponse{ID: row.ID, Code: string(row.Code), Name: row.Name})
	}
	return c.JSON(out)
}

// AutoAllotTAT backfills missing (nature, type) TAT mappings. The request
// body may override the configured pool.
func (h *MasterDataHandler) AutoAllotTAT(c *fiber.Ctx) error {
	pool := h.tatPool
	if len(c.Body()) > 0 {
		var req struct {
			TATPool []int `json:"tat_pool"`
		}
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}
		if len(req.TATPool) > 0 {
			pool = req.TATPool
		}
	}

	result, err := h.tatService.AutoAllot(c.UserContext(), pool)
	if err != nil {
		return err
	}
	return c.JSON(dto.AutoAllotResponse{
		PairsCreated: result.PairsCreated,
		PairsTotal:   result.PairsTotal,
	})
}
