package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sr-service/internal/domain"
)

// TATRepository manages (nature, type) -> TAT-days mappings.
type TATRepository interface {
	GetActiveByPair(ctx context.Context, natureID, typeID string) (*domain.SRTATDays, error)
	// CreateIfMissing inserts the mapping unless the pair already exists.
	// Returns true when a new row was created.
	CreateIfMissing(ctx context.Context, tat *domain.SRTATDays) (bool, error)
	ListAll(ctx context.Context) ([]domain.SRTATDays, error)
	WithTx(tx pgx.Tx) TATRepository
}

type tatRepository struct {
	db Querier
}

// NewTATRepository builds the repository.
func NewTATRepository(db Querier) TATRepository {
	return &tatRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *tatRepository) WithTx(tx pgx.Tx) TATRepository {
	return &tatRepository{db: tx}
}

func (r *tatRepository) GetActiveByPair(ctx context.Context, natureID, typeID string) (*domain.SRTATDays, error) {
	const query = `
        SELECT id, sr_nature_id, sr_type_id, tat_days, is_active
        FROM sr_tat_days WHERE sr_nature_id=$1 AND sr_type_id=$2 AND is_active = TRUE`
	var tat domain.SRTATDays
	if err := r.db.QueryRow(ctx, query, natureID, typeID).Scan(
		&tat.ID,
		&tat.NatureID,
		&tat.TypeID,
		&tat.TATDays,
		&tat.IsActive,
	); err != nil {
		return nil, err
	}
	return &tat, nil
}

func (r *tatRepository) CreateIfMissing(ctx context.Context, tat *domain.SRTATDays) (bool, error) {
	const query = `
        INSERT INTO sr_tat_days (sr_nature_id, sr_type_id, tat_days, is_active)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (sr_nature_id, sr_type_id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		tat.NatureID,
		tat.TypeID,
		tat.TATDays,
		tat.IsActive,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *tatRepository) ListAll(ctx context.Context) ([]domain.SRTATDays, error) {
	const query = `
        SELECT id, sr_nature_id, sr_type_id, tat_days, is_active
        FROM sr_tat_days`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SRTATDays
	for rows.Next() {
		var tat domain.SRTATDays
		if err := rows.Scan(&tat.ID, &tat.NatureID, &tat.TypeID, &tat.TATDays, &tat.IsActive); err != nil {
			return nil, err
		}
		result = append(result, tat)
	}
	return result, rows.Err()
}
