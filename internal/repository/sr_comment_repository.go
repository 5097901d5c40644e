package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sr-service/internal/domain"
)

// SRCommentRepository manages the comment trail of a service request.
type SRCommentRepository interface {
	Create(ctx context.Context, comment *domain.SRComment) error
	ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]domain.SRComment, error)
	WithTx(tx pgx.Tx) SRCommentRepository
}

type srCommentRepository struct {
	db Querier
}

// NewSRCommentRepository builds repository.
func NewSRCommentRepository(db Querier) SRCommentRepository {
	return &srCommentRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *srCommentRepository) WithTx(tx pgx.Tx) SRCommentRepository {
	return &srCommentRepository{db: tx}
}

func (r *srCommentRepository) Create(ctx context.Context, comment *domain.SRComment) error {
	const query = `
        INSERT INTO sr_comments (service_request_id, user_id, comment, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		comment.ServiceRequestID,
		comment.UserID,
		comment.Comment,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

func (r *srCommentRepository) ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]domain.SRComment, error) {
	const query = `
        SELECT id, service_request_id, user_id, comment, is_internal, created_at, updated_at
        FROM sr_comments WHERE service_request_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, serviceRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SRComment
	for rows.Next() {
		var comment domain.SRComment
		if err := rows.Scan(
			&comment.ID,
			&comment.ServiceRequestID,
			&comment.UserID,
			&comment.Comment,
			&comment.IsInternal,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
