package service

import (
	"context"
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/events"
	"github.com/spec-kit/sr-service/internal/repository"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// TATService resolves turnaround targets and backfills missing mappings.
type TATService struct {
	masters    repository.MasterDataRepository
	tats       repository.TATRepository
	dispatcher events.Dispatcher
	randInt    func(n int) int
}

// TATDependencies bundles collaborators for the TAT service.
type TATDependencies struct {
	MasterRepo repository.MasterDataRepository
	TATRepo    repository.TATRepository
	Dispatcher events.Dispatcher
}

// AutoAllotResult summarizes a backfill run.
type AutoAllotResult struct {
	PairsCreated int
	PairsTotal   int
}

// NewTATService constructs the service.
func NewTATService(deps TATDependencies) *TATService {
	return &TATService{
		masters:    deps.MasterRepo,
		tats:       deps.TATRepo,
		dispatcher: deps.Dispatcher,
		randInt:    rand.Intn,
	}
}

// Resolve returns the active mapping for a (nature, type) pair.
func (s *TATService) Resolve(ctx context.Context, natureID, typeID string) (*domain.SRTATDays, error) {
	tat, err := s.tats.GetActiveByPair(ctx, natureID, typeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("tat mapping", map[string]any{
				"sr_nature_id": natureID,
				"sr_type_id":   typeID,
			})
		}
		return nil, apperrors.MapError(err)
	}
	return tat, nil
}

// AutoAllot fills every active (nature, type) pair lacking a mapping with
// a value drawn uniformly from the injected pool. Existing mappings are
// never overwritten; the operation is idempotent per pair.
func (s *TATService) AutoAllot(ctx context.Context, pool []int) (*AutoAllotResult, error) {
	if len(pool) == 0 {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{
			"tat_pool": "TAT pool must not be empty",
		})
	}
	for _, days := range pool {
		if days <= 0 {
			return nil, apperrors.NewValidationError("validation failed", map[string]any{
				"tat_pool": "TAT pool values must be positive",
			})
		}
	}

	natures, err := s.masters.ListActiveNatures(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	types, err := s.masters.ListActiveTypes(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(natures) == 0 || len(types) == 0 {
		return nil, apperrors.NewConflict("sr nature or sr type master data missing", nil)
	}

	result := &AutoAllotResult{PairsTotal: len(natures) * len(types)}
	for _, nature := range natures {
		for _, srType := range types {
			tat := &domain.SRTATDays{
				NatureID: nature.ID,
				TypeID:   srType.ID,
				TATDays:  pool[s.randInt(len(pool))],
				IsActive: true,
			}
			created, err := s.tats.CreateIfMissing(ctx, tat)
			if err != nil {
				return nil, apperrors.MapError(err)
			}
			if created {
				result.PairsCreated++
			}
		}
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:   uuid.NewString(),
			Type: events.EventTATAutoAllotted,
			Payload: events.TATAutoAllottedPayload{
				PairsCreated: result.PairsCreated,
				PairsTotal:   result.PairsTotal,
			},
		})
	}
	return result, nil
}
