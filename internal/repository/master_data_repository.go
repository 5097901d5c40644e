package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sr-service/internal/domain"
)

// MasterDataRepository manages the nature/type/status reference tables.
// The lifecycle only reads them; seeding is the single writer.
type MasterDataRepository interface {
	GetNatureByCode(ctx context.Context, code string) (*domain.SRNature, error)
	GetTypeByCode(ctx context.Context, code string) (*domain.SRType, error)
	GetStatusByCode(ctx context.Context, code domain.StatusCode) (*domain.SRStatus, error)
	ListActiveNatures(ctx context.Context) ([]domain.SRNature, error)
	ListActiveTypes(ctx context.Context) ([]domain.SRType, error)
	ListActiveStatuses(ctx context.Context) ([]domain.SRStatus, error)
	UpsertNature(ctx context.Context, code, name string) (bool, error)
	UpsertType(ctx context.Context, code, name string) (bool, error)
	UpsertStatus(ctx context.Context, code domain.StatusCode, name string) (bool, error)
	WithTx(tx pgx.Tx) MasterDataRepository
}

type masterDataRepository struct {
	db Querier
}

// NewMasterDataRepository builds the repository.
func NewMasterDataRepository(db Querier) MasterDataRepository {
	return &masterDataRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *masterDataRepository) WithTx(tx pgx.Tx) MasterDataRepository {
	return &masterDataRepository{db: tx}
}

func (r *masterDataRepository) GetNatureByCode(ctx context.Context, code string) (*domain.SRNature, error) {
	const query = `
        SELECT id, code, name, is_active, created_at
        FROM sr_natures WHERE code=$1`
	var nature domain.SRNature
	if err := r.db.QueryRow(ctx, query, code).Scan(
		&nature.ID,
		&nature.Code,
		&nature.Name,
		&nature.IsActive,
		&nature.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &nature, nil
}

func (r *masterDataRepository) GetTypeByCode(ctx context.Context, code string) (*domain.SRType, error) {
	const query = `
        SELECT id, code, name, is_active, created_at
        FROM sr_types WHERE code=$1`
	var srType domain.SRType
	if err := r.db.QueryRow(ctx, query, code).Scan(
		&srType.ID,
		&srType.Code,
		&srType.Name,
		&srType.IsActive,
		&srType.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &srType, nil
}

func (r *masterDataRepository) GetStatusByCode(ctx context.Context, code domain.StatusCode) (*domain.SRStatus, error) {
	const query = `
        SELECT id, code, name, is_active
        FROM sr_statuses WHERE code=$1`
	var status domain.SRStatus
	if err := r.db.QueryRow(ctx, query, code).Scan(
		&status.ID,
		&status.Code,
		&status.Name,
		&status.IsActive,
	); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *masterDataRepository) ListActiveNatures(ctx context.Context) ([]domain.SRNature, error) {
	const query = `
        SELECT id, code, name, is_active, created_at
        FROM sr_natures WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SRNature
	for rows.Next() {
		var nature domain.SRNature
		if err := rows.Scan(&nature.ID, &nature.Code, &nature.Name, &nature.IsActive, &nature.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, nature)
	}
	return result, rows.Err()
}

func (r *masterDataRepository) ListActiveTypes(ctx context.Context) ([]domain.SRType, error) {
	const query = `
        SELECT id, code, name, is_active, created_at
        FROM sr_types WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SRType
	for rows.Next() {
		var srType domain.SRType
		if err := rows.Scan(&srType.ID, &srType.Code, &srType.Name, &srType.IsActive, &srType.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, srType)
	}
	return result, rows.Err()
}

func (r *masterDataRepository) ListActiveStatuses(ctx context.Context) ([]domain.SRStatus, error) {
	const query = `
        SELECT id, code, name, is_active
        FROM sr_statuses WHERE is_active = TRUE ORDER BY code`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SRStatus
	for rows.Next() {
		var status domain.SRStatus
		if err := rows.Scan(&status.ID, &status.Code, &status.Name, &status.IsActive); err != nil {
			return nil, err
		}
		result = append(result, status)
	}
	return result, rows.Err()
}

func (r *masterDataRepository) UpsertNature(ctx context.Context, code, name string) (bool, error) {
	const query = `
        INSERT INTO sr_natures (code, name, is_active)
        VALUES ($1,$2,TRUE)
        ON CONFLICT (code) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query, code, name)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *masterDataRepository) UpsertType(ctx context.Context, code, name string) (bool, error) {
	const query = `
        INSERT INTO sr_types (code, name, is_active)
        VALUES ($1,$2,TRUE)
        ON CONFLICT (code) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query, code, name)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *masterDataRepository) UpsertStatus(ctx context.Context, code domain.StatusCode, name string) (bool, error) {
	const query = `
        INSERT INTO sr_statuses (code, name, is_active)
        VALUES ($1,$2,TRUE)
        ON CONFLICT (code) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query, code, name)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
