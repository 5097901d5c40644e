package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/events"
	"github.com/spec-kit/sr-service/internal/repository"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

// createAttempts bounds regeneration when the storage-level uniqueness
// constraint rejects an insert that passed the pre-insert probe.
const createAttempts = 3

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// TxBeginner starts pgx transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// SRService coordinates the service-request lifecycle.
type SRService struct {
	db         TxBeginner
	srs        repository.ServiceRequestRepository
	masters    repository.MasterDataRepository
	tats       repository.TATRepository
	comments   repository.SRCommentRepository
	numbers    *SRNumberGenerator
	dispatcher events.Dispatcher
	now        func() time.Time
}

// SRDependencies bundles collaborators for the SR service.
type SRDependencies struct {
	DB          TxBeginner
	SRRepo      repository.ServiceRequestRepository
	MasterRepo  repository.MasterDataRepository
	TATRepo     repository.TATRepository
	CommentRepo repository.SRCommentRepository
	Numbers     *SRNumberGenerator
	Dispatcher  events.Dispatcher
}

// SRCreateInput describes a creation submission.
type SRCreateInput struct {
	Category      string
	AccountNumber string
	NatureCode    string
	TypeCode      string
	Subject       string
	Description   string
	Email         string
	Phone         string
	Address       string
}

// NewSRService constructs the service.
func NewSRService(deps SRDependencies) *SRService {
	numbers := deps.Numbers
	if numbers == nil {
		numbers = NewSRNumberGenerator()
	}
	return &SRService{
		db:         deps.DB,
		srs:        deps.SRRepo,
		masters:    deps.MasterRepo,
		tats:       deps.TATRepo,
		comments:   deps.CommentRepo,
		numbers:    numbers,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// Create validates the submission, binds master records and persists the
// request with a freshly generated SR number. All writes and the probe
// happen in one transaction; the insert retries on a uniqueness conflict.
func (s *SRService) Create(ctx context.Context, creator *domain.User, input SRCreateInput) (*domain.ServiceRequest, error) {
	if creator == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if errs := validateCreateInput(&input); len(errs) > 0 {
		return nil, apperrors.NewValidationError("validation failed", errs)
	}

	var sr *domain.ServiceRequest
	var natureCode, typeCode string
	var tatDays *int

	err := s.inTx(ctx, func(sc *txScope) error {
		nature, err := sc.masters.GetNatureByCode(ctx, input.NatureCode)
		if err != nil {
			return masterNotFound("sr nature", input.NatureCode, err)
		}
		if !nature.IsActive {
			return apperrors.NewNotFound("sr nature", map[string]any{"code": input.NatureCode})
		}
		srType, err := sc.masters.GetTypeByCode(ctx, input.TypeCode)
		if err != nil {
			return masterNotFound("sr type", input.TypeCode, err)
		}
		if !srType.IsActive {
			return apperrors.NewNotFound("sr type", map[string]any{"code": input.TypeCode})
		}
		openStatus, err := sc.masters.GetStatusByCode(ctx, domain.StatusOpen)
		if err != nil {
			return masterNotFound("sr status", string(domain.StatusOpen), err)
		}
		if !openStatus.IsActive {
			return apperrors.NewNotFound("sr status", map[string]any{"code": domain.StatusOpen})
		}

		// A missing mapping is a valid zero-TAT state; resolution never
		// allots implicitly at creation time.
		var tatID *string
		if tat, err := sc.tats.GetActiveByPair(ctx, nature.ID, srType.ID); err == nil {
			tatID = &tat.ID
			days := tat.TATDays
			tatDays = &days
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		candidate := &domain.ServiceRequest{
			Category:    domain.SRCategory(input.Category),
			NatureID:    nature.ID,
			TypeID:      srType.ID,
			Subject:     strings.TrimSpace(input.Subject),
			Description: strings.TrimSpace(input.Description),
			TATID:       tatID,
			Email:       strings.TrimSpace(input.Email),
			Phone:       strings.TrimSpace(input.Phone),
			CreatedBy:   &creator.ID,
			StatusID:    openStatus.ID,
			StatusCode:  domain.StatusOpen,
		}
		if candidate.Category == domain.CategoryParented {
			account := strings.TrimSpace(input.AccountNumber)
			candidate.AccountNumber = &account
		}
		if address := strings.TrimSpace(input.Address); address != "" {
			candidate.Address = &address
		}
		if creator.IsStaff() {
			candidate.AssignedTo = &creator.ID
		}

		for attempt := 0; attempt < createAttempts; attempt++ {
			srNumber, err := s.numbers.Generate(ctx, sc.srs.ExistsBySRNumber)
			if err != nil {
				return err
			}
			candidate.SRNumber = srNumber
			if err := sc.insertSR(ctx, candidate); err != nil {
				if isUniqueViolation(err) {
					continue
				}
				return err
			}
			natureCode = nature.Code
			typeCode = srType.Code
			sr = candidate
			return nil
		}
		return apperrors.NewConflict("could not allocate a unique SR number", nil)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:             events.EventSRCreated,
		ServiceRequestID: sr.ID,
		Actor:            actorFor(creator),
		Payload: events.SRCreatedPayload{
			SRNumber:   sr.SRNumber,
			Category:   sr.Category,
			NatureCode: natureCode,
			TypeCode:   typeCode,
			Subject:    sr.Subject,
			TATDays:    tatDays,
		},
	})
	return sr, nil
}

// Transition moves the request into a new lifecycle state. Staff only.
// Transitioning into CLOSED stamps closer identity and timestamp; CLOSED
// itself is terminal.
func (s *SRService) Transition(ctx context.Context, actor *domain.User, srID string, newStatus domain.StatusCode, notes string) (*domain.ServiceRequest, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	sr, err := s.getSR(ctx, srID)
	if err != nil {
		return nil, err
	}
	if sr.StatusCode == newStatus {
		return sr, nil
	}

	status, err := s.masters.GetStatusByCode(ctx, newStatus)
	if err != nil {
		return nil, masterNotFound("sr status", string(newStatus), err)
	}
	if !status.IsActive {
		return nil, apperrors.NewNotFound("sr status", map[string]any{"code": newStatus})
	}
	if !isValidTransition(sr.StatusCode, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": sr.StatusCode,
			"to":   newStatus,
		})
	}

	oldStatus := sr.StatusCode
	if newStatus == domain.StatusClosed {
		now := s.now()
		sr.ClosedBy = &actor.ID
		sr.ClosedAt = &now
	}
	sr.StatusID = status.ID
	sr.StatusCode = newStatus
	notes = strings.TrimSpace(notes)

	// Status write and notes comment commit or roll back together.
	err = s.inTx(ctx, func(sc *txScope) error {
		if err := sc.srs.Update(ctx, sr); err != nil {
			return apperrors.MapError(err)
		}
		if notes != "" && sc.comments != nil {
			entry := &domain.SRComment{
				ServiceRequestID: sr.ID,
				UserID:           &actor.ID,
				Comment:          notes,
				IsInternal:       true,
			}
			if err := sc.comments.Create(ctx, entry); err != nil {
				return apperrors.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:             events.EventSRStatusChanged,
		ServiceRequestID: sr.ID,
		Actor:            actorFor(actor),
		Payload: events.SRStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Notes:     notes,
		},
	})
	return sr, nil
}

// Assign lets a staff member take a request for themselves.
func (s *SRService) Assign(ctx context.Context, actor *domain.User, srID string) (*domain.ServiceRequest, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	sr, err := s.getSR(ctx, srID)
	if err != nil {
		return nil, err
	}
	sr.AssignedTo = &actor.ID
	if err := s.srs.Update(ctx, sr); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:             events.EventSRAssigned,
		ServiceRequestID: sr.ID,
		Actor:            actorFor(actor),
		Payload:          events.SRAssignedPayload{AssignedTo: sr.AssignedTo},
	})
	return sr, nil
}

// AddComment appends an annotation to the request's trail.
func (s *SRService) AddComment(ctx context.Context, author *domain.User, srID, text string, internal bool) (*domain.SRComment, error) {
	if author == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{
			"comment": "Comment cannot be empty",
		})
	}
	sr, err := s.getSR(ctx, srID)
	if err != nil {
		return nil, err
	}
	if !author.IsStaff() {
		if internal {
			return nil, apperrors.NewForbidden("internal comments are staff only")
		}
		if sr.CreatedBy == nil || *sr.CreatedBy != author.ID {
			return nil, apperrors.NewForbidden("access denied")
		}
	}

	comment := &domain.SRComment{
		ServiceRequestID: sr.ID,
		UserID:           &author.ID,
		Comment:          text,
		IsInternal:       internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:             events.EventSRCommentAdded,
		ServiceRequestID: sr.ID,
		Actor:            actorFor(author),
		Payload: events.SRCommentAddedPayload{
			CommentID:   comment.ID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Comment, 120),
		},
	})
	return comment, nil
}

// ListComments returns the trail in creation order. Internal entries are
// filtered out for non-staff viewers.
func (s *SRService) ListComments(ctx context.Context, viewer *domain.User, srID string) ([]domain.SRComment, error) {
	sr, err := s.GetForViewer(ctx, viewer, srID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByServiceRequest(ctx, sr.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if viewer.IsStaff() {
		return comments, nil
	}
	visible := make([]domain.SRComment, 0, len(comments))
	for _, comment := range comments {
		if comment.IsInternal {
			continue
		}
		visible = append(visible, comment)
	}
	return visible, nil
}

// GetForViewer fetches a request enforcing ownership for non-staff.
func (s *SRService) GetForViewer(ctx context.Context, viewer *domain.User, srID string) (*domain.ServiceRequest, error) {
	if viewer == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	sr, err := s.getSR(ctx, srID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsStaff() && (sr.CreatedBy == nil || *sr.CreatedBy != viewer.ID) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return sr, nil
}

// GetBySRNumber fetches a request by its public identifier. Staff only;
// customers address their own requests by id.
func (s *SRService) GetBySRNumber(ctx context.Context, actor *domain.User, srNumber string) (*domain.ServiceRequest, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	sr, err := s.srs.GetBySRNumber(ctx, srNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"sr_number": srNumber})
		}
		return nil, apperrors.MapError(err)
	}
	return sr, nil
}

// ListForUser returns the caller's own requests.
func (s *SRService) ListForUser(ctx context.Context, userID string, filter repository.SRFilter) ([]domain.ServiceRequest, error) {
	filter.CreatedBy = &userID
	result, err := s.srs.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// ListForStaff returns filtered requests plus per-status counts.
func (s *SRService) ListForStaff(ctx context.Context, actor *domain.User, filter repository.SRFilter) ([]domain.ServiceRequest, *repository.StatusCounts, error) {
	if err := requireStaff(actor); err != nil {
		return nil, nil, err
	}
	result, err := s.srs.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	counts, err := s.srs.CountByStatus(ctx, filter)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return result, counts, nil
}

func (s *SRService) getSR(ctx context.Context, srID string) (*domain.ServiceRequest, error) {
	sr, err := s.srs.GetByID(ctx, srID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service request", map[string]any{"id": srID})
		}
		return nil, apperrors.MapError(err)
	}
	return sr, nil
}

// txScope carries the repositories bound to one transaction. tx is nil
// when the service runs without a pool (unit tests); writes then apply
// directly through the plain repositories.
type txScope struct {
	tx       pgx.Tx
	srs      repository.ServiceRequestRepository
	masters  repository.MasterDataRepository
	tats     repository.TATRepository
	comments repository.SRCommentRepository
}

// insertSR runs one insert attempt under a savepoint. A uniqueness
// violation aborts only the savepoint, so the enclosing transaction stays
// usable for the next probe and attempt.
func (sc *txScope) insertSR(ctx context.Context, sr *domain.ServiceRequest) error {
	if sc.tx == nil {
		return sc.srs.Create(ctx, sr)
	}
	sp, err := sc.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := sc.srs.WithTx(sp).Create(ctx, sr); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// inTx runs fn with transaction-bound repositories; without a configured
// pool (unit tests) it falls through to the plain repositories.
func (s *SRService) inTx(ctx context.Context, fn func(*txScope) error) error {
	if s.db == nil {
		return fn(&txScope{srs: s.srs, masters: s.masters, tats: s.tats, comments: s.comments})
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.MapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scope := &txScope{
		tx:      tx,
		srs:     s.srs.WithTx(tx),
		masters: s.masters.WithTx(tx),
		tats:    s.tats.WithTx(tx),
	}
	if s.comments != nil {
		scope.comments = s.comments.WithTx(tx)
	}
	if err := fn(scope); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *SRService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateCreateInput(input *SRCreateInput) map[string]any {
	errs := map[string]any{}

	category := domain.SRCategory(strings.TrimSpace(input.Category))
	input.Category = string(category)
	if !category.Valid() {
		errs["category"] = "Please select a valid SR category"
	}
	if category == domain.CategoryParented && strings.TrimSpace(input.AccountNumber) == "" {
		errs["account_number"] = "Account number is required for Parented SR"
	}
	if strings.TrimSpace(input.NatureCode) == "" {
		errs["sr_nature"] = "Please select SR nature"
	}
	if strings.TrimSpace(input.TypeCode) == "" {
		errs["sr_type"] = "Please select SR type"
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Subject)) < 5 {
		errs["subject"] = "Subject must be at least 5 characters"
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Description)) < 20 {
		errs["description"] = "Description must be at least 20 characters"
	}
	if strings.TrimSpace(input.Email) == "" {
		errs["email"] = "Email is required"
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		errs["phone"] = "Phone number is required"
	} else if !phonePattern.MatchString(phone) {
		errs["phone"] = "Phone must be in format: '+999999999'. Up to 15 digits."
	}
	return errs
}

// requireStaff is the single capability check for transition/assign.
func requireStaff(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("staff privilege required")
	}
	return nil
}

var allowedTransitions = map[domain.StatusCode][]domain.StatusCode{
	domain.StatusOpen:       {domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed},
	domain.StatusInProgress: {domain.StatusResolved, domain.StatusClosed},
	domain.StatusResolved:   {domain.StatusInProgress, domain.StatusClosed},
	domain.StatusClosed:     {},
}

func isValidTransition(current, next domain.StatusCode) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func masterNotFound(resource, code string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"code": code})
	}
	return apperrors.MapError(err)
}

func actorFor(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: &user.ID, Role: user.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
