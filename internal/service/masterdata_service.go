package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/repository"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

const (
	cacheKeyNatures  = "masterdata:natures"
	cacheKeyTypes    = "masterdata:types"
	cacheKeyStatuses = "masterdata:statuses"
)

// SeedRow is one master record to upsert by code.
type SeedRow struct {
	Code string
	Name string
}

// StatusSeedRow is one lifecycle status to upsert by code.
type StatusSeedRow struct {
	Code domain.StatusCode
	Name string
}

// SeedData carries the master rows to load. It is always passed in
// explicitly so deployments can override the defaults.
type SeedData struct {
	Natures  []SeedRow
	Types    []SeedRow
	Statuses []StatusSeedRow
}

// DefaultSeedData returns the stock nature/type/status master rows.
func DefaultSeedData() SeedData {
	return SeedData{
		Natures: []SeedRow{
			{Code: "complaint", Name: "Complaint"},
			{Code: "request", Name: "Request"},
			{Code: "query", Name: "Query"},
		},
		Types: []SeedRow{
			{Code: "card_issue", Name: "Card Issue"},
			{Code: "netbanking_issue", Name: "NetBanking Issue"},
			{Code: "branch_service", Name: "Branch Service"},
			{Code: "loan_related", Name: "Loan Related"},
			{Code: "account_opening", Name: "Account Opening"},
			{Code: "transaction_dispute", Name: "Transaction Dispute"},
			{Code: "others", Name: "Others"},
		},
		Statuses: []StatusSeedRow{
			{Code: domain.StatusOpen, Name: "Open"},
			{Code: domain.StatusInProgress, Name: "In Progress"},
			{Code: domain.StatusResolved, Name: "Resolved"},
			{Code: domain.StatusClosed, Name: "Closed"},
		},
	}
}

// MasterDataService seeds reference data and serves cached lookups.
type MasterDataService struct {
	masters  repository.MasterDataRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewMasterDataService constructs the service; cache may be nil.
func NewMasterDataService(masters repository.MasterDataRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *MasterDataService {
	return &MasterDataService{
		masters:  masters,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Seed upserts the given master rows by code; existing rows are left
// untouched, so repeated runs are harmless.
func (s *MasterDataService) Seed(ctx context.Context, data SeedData) error {
	for _, row := range data.Natures {
		created, err := s.masters.UpsertNature(ctx, row.Code, row.Name)
		if err != nil {
			return apperrors.MapError(err)
		}
		s.logSeed("sr nature", row.Code, created)
	}
	for _, row := range data.Types {
		created, err := s.masters.UpsertType(ctx, row.Code, row.Name)
		if err != nil {
			return apperrors.MapError(err)
		}
		s.logSeed("sr type", row.Code, created)
	}
	for _, row := range data.Statuses {
		created, err := s.masters.UpsertStatus(ctx, row.Code, row.Name)
		if err != nil {
			return apperrors.MapError(err)
		}
		s.logSeed("sr status", string(row.Code), created)
	}
	s.invalidateCache(ctx)
	return nil
}

// ListNatures returns active natures, served from cache when possible.
func (s *MasterDataService) ListNatures(ctx context.Context) ([]domain.SRNature, error) {
	var cached []domain.SRNature
	if s.readCache(ctx, cacheKeyNatures, &cached) {
		return cached, nil
	}
	natures, err := s.masters.ListActiveNatures(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.writeCache(ctx, cacheKeyNatures, natures)
	return natures, nil
}

// ListTypes returns active types, served from cache when possible.
func (s *MasterDataService) ListTypes(ctx context.Context) ([]domain.SRType, error) {
	var cached []domain.SRType
	if s.readCache(ctx, cacheKeyTypes, &cached) {
		return cached, nil
	}
	types, err := s.masters.ListActiveTypes(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.writeCache(ctx, cacheKeyTypes, types)
	return types, nil
}

// ListStatuses returns active statuses, served from cache when possible.
func (s *MasterDataService) ListStatuses(ctx context.Context) ([]domain.SRStatus, error) {
	var cached []domain.SRStatus
	if s.readCache(ctx, cacheKeyStatuses, &cached) {
		return cached, nil
	}
	statuses, err := s.masters.ListActiveStatuses(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.writeCache(ctx, cacheKeyStatuses, statuses)
	return statuses, nil
}

func (s *MasterDataService) logSeed(kind, code string, created bool) {
	if s.logger == nil {
		return
	}
	if created {
		s.logger.Info("seeded master record", zap.String("kind", kind), zap.String("code", code))
	} else {
		s.logger.Debug("master record already present", zap.String("kind", kind), zap.String("code", code))
	}
}

func (s *MasterDataService) readCache(ctx context.Context, key string, target any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

func (s *MasterDataService) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("master cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *MasterDataService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKeyNatures, cacheKeyTypes, cacheKeyStatuses).Err()
}
