package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sr-service/internal/domain"
)

// SRFilter captures listing parameters.
type SRFilter struct {
	CreatedBy   *string
	AssignedTo  *string
	Category    *domain.SRCategory
	StatusCode  *domain.StatusCode
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	Limit       int
	Offset      int
}

// StatusCounts summarizes requests per lifecycle state.
type StatusCounts struct {
	Total      int64
	Open       int64
	InProgress int64
	Resolved   int64
	Closed     int64
}

// ServiceRequestRepository encapsulates SR persistence.
type ServiceRequestRepository interface {
	Create(ctx context.Context, sr *domain.ServiceRequest) error
	Update(ctx context.Context, sr *domain.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error)
	GetBySRNumber(ctx context.Context, srNumber string) (*domain.ServiceRequest, error)
	ExistsBySRNumber(ctx context.Context, srNumber string) (bool, error)
	ListWithFilter(ctx context.Context, filter SRFilter) ([]domain.ServiceRequest, error)
	CountByStatus(ctx context.Context, filter SRFilter) (*StatusCounts, error)
	WithTx(tx pgx.Tx) ServiceRequestRepository
}

type serviceRequestRepository struct {
	db Querier
}

// NewServiceRequestRepository instantiates repository.
func NewServiceRequestRepository(db Querier) ServiceRequestRepository {
	return &serviceRequestRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *serviceRequestRepository) WithTx(tx pgx.Tx) ServiceRequestRepository {
	return &serviceRequestRepository{db: tx}
}

const srColumns = `sr.id, sr.sr_number, sr.category, sr.sr_nature_id, sr.sr_type_id,
               sr.subject, sr.description, sr.tat_id, sr.account_number, sr.email, sr.phone, sr.address,
               sr.created_by, sr.assigned_to, sr.closed_by, sr.status_id, st.code,
               sr.created_at, sr.updated_at, sr.closed_at`

func (r *serviceRequestRepository) Create(ctx context.Context, sr *domain.ServiceRequest) error {
	const query = `
        INSERT INTO service_requests (sr_number, category, sr_nature_id, sr_type_id, subject, description,
            tat_id, account_number, email, phone, address, created_by, assigned_to, status_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		sr.SRNumber,
		sr.Category,
		sr.NatureID,
		sr.TypeID,
		sr.Subject,
		sr.Description,
		sr.TATID,
		sr.AccountNumber,
		sr.Email,
		sr.Phone,
		sr.Address,
		sr.CreatedBy,
		sr.AssignedTo,
		sr.StatusID,
	).Scan(&sr.ID, &sr.CreatedAt, &sr.UpdatedAt)
}

// Update writes the fields mutated by transitions and assignments. The SR
// number and created_at stay untouched by design of the schema and query.
func (r *serviceRequestRepository) Update(ctx context.Context, sr *domain.ServiceRequest) error {
	const query = `
        UPDATE service_requests SET assigned_to=$1, closed_by=$2, status_id=$3, tat_id=$4,
            closed_at=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		sr.AssignedTo,
		sr.ClosedBy,
		sr.StatusID,
		sr.TATID,
		sr.ClosedAt,
		sr.ID,
	).Scan(&sr.UpdatedAt)
}

func (r *serviceRequestRepository) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM service_requests sr
        JOIN sr_statuses st ON st.id = sr.status_id
        WHERE sr.id=$1`, srColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *serviceRequestRepository) GetBySRNumber(ctx context.Context, srNumber string) (*domain.ServiceRequest, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM service_requests sr
        JOIN sr_statuses st ON st.id = sr.status_id
        WHERE sr.sr_number=$1`, srColumns)
	return r.fetchSingle(ctx, query, srNumber)
}

func (r *serviceRequestRepository) ExistsBySRNumber(ctx context.Context, srNumber string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM service_requests WHERE sr_number=$1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, srNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *serviceRequestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&sr.ID,
		&sr.SRNumber,
		&sr.Category,
		&sr.NatureID,
		&sr.TypeID,
		&sr.Subject,
		&sr.Description,
		&sr.TATID,
		&sr.AccountNumber,
		&sr.Email,
		&sr.Phone,
		&sr.Address,
		&sr.CreatedBy,
		&sr.AssignedTo,
		&sr.ClosedBy,
		&sr.StatusID,
		&sr.StatusCode,
		&sr.CreatedAt,
		&sr.UpdatedAt,
		&sr.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &sr, nil
}

func (r *serviceRequestRepository) ListWithFilter(ctx context.Context, filter SRFilter) ([]domain.ServiceRequest, error) {
	clauses, args := filterClauses(filter)

	order := "sr.created_at DESC"
	switch filter.SortBy {
	case "created_at":
		order = "sr.created_at ASC"
	case "sr_number":
		order = "sr.sr_number ASC"
	case "-sr_number":
		order = "sr.sr_number DESC"
	case "status":
		order = "st.code ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s
        FROM service_requests sr
        JOIN sr_statuses st ON st.id = sr.status_id
        WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		srColumns, strings.Join(clauses, " AND "), order, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServiceRequests(rows)
}

func (r *serviceRequestRepository) CountByStatus(ctx context.Context, filter SRFilter) (*StatusCounts, error) {
	clauses, args := filterClauses(filter)
	query := fmt.Sprintf(`
        SELECT st.code, COUNT(*)
        FROM service_requests sr
        JOIN sr_statuses st ON st.id = sr.status_id
        WHERE %s
        GROUP BY st.code`, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := &StatusCounts{}
	for rows.Next() {
		var code domain.StatusCode
		var count int64
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		counts.Total += count
		switch code {
		case domain.StatusOpen:
			counts.Open = count
		case domain.StatusInProgress:
			counts.InProgress = count
		case domain.StatusResolved:
			counts.Resolved = count
		case domain.StatusClosed:
			counts.Closed = count
		}
	}
	return counts, rows.Err()
}

func filterClauses(filter SRFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("sr.created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("sr.assigned_to=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("sr.category=$%d", len(args)))
	}
	if filter.StatusCode != nil {
		args = append(args, *filter.StatusCode)
		clauses = append(clauses, fmt.Sprintf("st.code=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("sr.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("sr.created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(sr.sr_number) LIKE %s OR LOWER(sr.subject) LIKE %s OR LOWER(sr.description) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	return clauses, args
}

func scanServiceRequests(rows pgx.Rows) ([]domain.ServiceRequest, error) {
	var result []domain.ServiceRequest
	for rows.Next() {
		var sr domain.ServiceRequest
		if err := rows.Scan(
			&sr.ID,
			&sr.SRNumber,
			&sr.Category,
			&sr.NatureID,
			&sr.TypeID,
			&sr.Subject,
			&sr.Description,
			&sr.TATID,
			&sr.AccountNumber,
			&sr.Email,
			&sr.Phone,
			&sr.Address,
			&sr.CreatedBy,
			&sr.AssignedTo,
			&sr.ClosedBy,
			&sr.StatusID,
			&sr.StatusCode,
			&sr.CreatedAt,
			&sr.UpdatedAt,
			&sr.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}
