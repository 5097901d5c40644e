package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/repository"
)

type fakeSRRepo struct {
	mu         sync.Mutex
	seq        int
	byID       map[string]*domain.ServiceRequest
	byNumber   map[string]string
	takenProbe map[string]bool
	failCreate int
}

func newFakeSRRepo() *fakeSRRepo {
	return &fakeSRRepo{
		byID:       map[string]*domain.ServiceRequest{},
		byNumber:   map[string]string{},
		takenProbe: map[string]bool{},
	}
}

func (r *fakeSRRepo) Create(_ context.Context, sr *domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate > 0 {
		r.failCreate--
		return &pgconn.PgError{Code: "23505", ConstraintName: "service_requests_sr_number_key"}
	}
	if _, exists := r.byNumber[sr.SRNumber]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "service_requests_sr_number_key"}
	}
	r.seq++
	sr.ID = fmt.Sprintf("sr-%d", r.seq)
	sr.CreatedAt = time.Now()
	sr.UpdatedAt = sr.CreatedAt
	stored := *sr
	r.byID[sr.ID] = &stored
	r.byNumber[sr.SRNumber] = sr.ID
	return nil
}

func (r *fakeSRRepo) Update(_ context.Context, sr *domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[sr.ID]; !exists {
		return pgx.ErrNoRows
	}
	sr.UpdatedAt = time.Now()
	stored := *sr
	r.byID[sr.ID] = &stored
	return nil
}

func (r *fakeSRRepo) GetByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *sr
	return &copied, nil
}

func (r *fakeSRRepo) GetBySRNumber(_ context.Context, srNumber string) (*domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byNumber[srNumber]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *fakeSRRepo) ExistsBySRNumber(_ context.Context, srNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenProbe[srNumber] {
		return true, nil
	}
	_, exists := r.byNumber[srNumber]
	return exists, nil
}

func (r *fakeSRRepo) ListWithFilter(_ context.Context, filter repository.SRFilter) ([]domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ServiceRequest{}
	for _, sr := range r.byID {
		if filter.CreatedBy != nil && (sr.CreatedBy == nil || *sr.CreatedBy != *filter.CreatedBy) {
			continue
		}
		if filter.AssignedTo != nil && (sr.AssignedTo == nil || *sr.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.StatusCode != nil && sr.StatusCode != *filter.StatusCode {
			continue
		}
		if filter.Category != nil && sr.Category != *filter.Category {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(sr.Subject), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		out = append(out, *sr)
	}
	return out, nil
}

func (r *fakeSRRepo) CountByStatus(_ context.Context, filter repository.SRFilter) (*repository.StatusCounts, error) {
	statusFree := filter
	statusFree.StatusCode = nil
	all, _ := r.ListWithFilter(context.Background(), statusFree)
	counts := &repository.StatusCounts{Total: int64(len(all))}
	for _, sr := range all {
		switch sr.StatusCode {
		case domain.StatusOpen:
			counts.Open++
		case domain.StatusInProgress:
			counts.InProgress++
		case domain.StatusResolved:
			counts.Resolved++
		case domain.StatusClosed:
			counts.Closed++
		}
	}
	return counts, nil
}

func (r *fakeSRRepo) WithTx(tx pgx.Tx) repository.ServiceRequestRepository {
	if ftx, ok := tx.(*fakeTx); ok {
		return &txSRRepo{repo: r, tx: ftx}
	}
	return r
}

// txSRRepo binds the SR fake to a fakeTx and mirrors Postgres semantics:
// a failed statement aborts the transaction, and every later statement on
// it fails with SQLSTATE 25P02 until the (savepoint) rollback.
type txSRRepo struct {
	repo *fakeSRRepo
	tx   *fakeTx
}

func (w *txSRRepo) Create(ctx context.Context, sr *domain.ServiceRequest) error {
	if err := w.tx.statementCheck(); err != nil {
		return err
	}
	if err := w.repo.Create(ctx, sr); err != nil {
		w.tx.aborted = true
		return err
	}
	return nil
}

func (w *txSRRepo) Update(ctx context.Context, sr *domain.ServiceRequest) error {
	if err := w.tx.statementCheck(); err != nil {
		return err
	}
	if err := w.repo.Update(ctx, sr); err != nil {
		w.tx.aborted = true
		return err
	}
	return nil
}

func (w *txSRRepo) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	if err := w.tx.statementCheck(); err != nil {
		return nil, err
	}
	return w.repo.GetByID(ctx, id)
}

func (w *txSRRepo) GetBySRNumber(ctx context.Context, srNumber string) (*domain.ServiceRequest, error) {
	if err := w.tx.statementCheck(); err != nil {
		return nil, err
	}
	return w.repo.GetBySRNumber(ctx, srNumber)
}

func (w *txSRRepo) ExistsBySRNumber(ctx context.Context, srNumber string) (bool, error) {
	if err := w.tx.statementCheck(); err != nil {
		return false, err
	}
	return w.repo.ExistsBySRNumber(ctx, srNumber)
}

func (w *txSRRepo) ListWithFilter(ctx context.Context, filter repository.SRFilter) ([]domain.ServiceRequest, error) {
	if err := w.tx.statementCheck(); err != nil {
		return nil, err
	}
	return w.repo.ListWithFilter(ctx, filter)
}

func (w *txSRRepo) CountByStatus(ctx context.Context, filter repository.SRFilter) (*repository.StatusCounts, error) {
	if err := w.tx.statementCheck(); err != nil {
		return nil, err
	}
	return w.repo.CountByStatus(ctx, filter)
}

func (w *txSRRepo) WithTx(tx pgx.Tx) repository.ServiceRequestRepository {
	return w.repo.WithTx(tx)
}

type fakeMasterRepo struct {
	natures  map[string]*domain.SRNature
	types    map[string]*domain.SRType
	statuses map[domain.StatusCode]*domain.SRStatus
}

func newFakeMasterRepo() *fakeMasterRepo {
	m := &fakeMasterRepo{
		natures:  map[string]*domain.SRNature{},
		types:    map[string]*domain.SRType{},
		statuses: map[domain.StatusCode]*domain.SRStatus{},
	}
	m.addNature("complaint", true)
	m.addNature("request", true)
	m.addType("card_issue", true)
	m.addType("others", true)
	for i, code := range []domain.StatusCode{domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed} {
		m.statuses[code] = &domain.SRStatus{ID: fmt.Sprintf("status-%d", i+1), Code: code, Name: string(code), IsActive: true}
	}
	return m
}

func (m *fakeMasterRepo) addNature(code string, active bool) {
	m.natures[code] = &domain.SRNature{ID: "nature-" + code, Code: code, Name: code, IsActive: active}
}

func (m *fakeMasterRepo) addType(code string, active bool) {
	m.types[code] = &domain.SRType{ID: "type-" + code, Code: code, Name: code, IsActive: active}
}

func (m *fakeMasterRepo) GetNatureByCode(_ context.Context, code string) (*domain.SRNature, error) {
	nature, ok := m.natures[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return nature, nil
}

func (m *fakeMasterRepo) GetTypeByCode(_ context.Context, code string) (*domain.SRType, error) {
	srType, ok := m.types[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return srType, nil
}

func (m *fakeMasterRepo) GetStatusByCode(_ context.Context, code domain.StatusCode) (*domain.SRStatus, error) {
	status, ok := m.statuses[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return status, nil
}

func (m *fakeMasterRepo) ListActiveNatures(_ context.Context) ([]domain.SRNature, error) {
	out := []domain.SRNature{}
	for _, nature := range m.natures {
		if nature.IsActive {
			out = append(out, *nature)
		}
	}
	return out, nil
}

func (m *fakeMasterRepo) ListActiveTypes(_ context.Context) ([]domain.SRType, error) {
	out := []domain.SRType{}
	for _, srType := range m.types {
		if srType.IsActive {
			out = append(out, *srType)
		}
	}
	return out, nil
}

func (m *fakeMasterRepo) ListActiveStatuses(_ context.Context) ([]domain.SRStatus, error) {
	out := []domain.SRStatus{}
	for _, status := range m.statuses {
		if status.IsActive {
			out = append(out, *status)
		}
	}
	return out, nil
}

func (m *fakeMasterRepo) UpsertNature(_ context.Context, code, name string) (bool, error) {
	if _, exists := m.natures[code]; exists {
		return false, nil
	}
	m.natures[code] = &domain.SRNature{ID: "nature-" + code, Code: code, Name: name, IsActive: true}
	return true, nil
}

func (m *fakeMasterRepo) UpsertType(_ context.Context, code, name string) (bool, error) {
	if _, exists := m.types[code]; exists {
		return false, nil
	}
	m.types[code] = &domain.SRType{ID: "type-" + code, Code: code, Name: name, IsActive: true}
	return true, nil
}

func (m *fakeMasterRepo) UpsertStatus(_ context.Context, code domain.StatusCode, name string) (bool, error) {
	if _, exists := m.statuses[code]; exists {
		return false, nil
	}
	m.statuses[code] = &domain.SRStatus{ID: "status-" + string(code), Code: code, Name: name, IsActive: true}
	return true, nil
}

func (m *fakeMasterRepo) WithTx(pgx.Tx) repository.MasterDataRepository { return m }

type fakeTATRepo struct {
	seq   int
	pairs map[string]*domain.SRTATDays
}

func newFakeTATRepo() *fakeTATRepo {
	return &fakeTATRepo{pairs: map[string]*domain.SRTATDays{}}
}

func pairKey(natureID, typeID string) string { return natureID + "|" + typeID }

func (r *fakeTATRepo) GetActiveByPair(_ context.Context, natureID, typeID string) (*domain.SRTATDays, error) {
	tat, ok := r.pairs[pairKey(natureID, typeID)]
	if !ok || !tat.IsActive {
		return nil, pgx.ErrNoRows
	}
	copied := *tat
	return &copied, nil
}

func (r *fakeTATRepo) CreateIfMissing(_ context.Context, tat *domain.SRTATDays) (bool, error) {
	key := pairKey(tat.NatureID, tat.TypeID)
	if _, exists := r.pairs[key]; exists {
		return false, nil
	}
	r.seq++
	tat.ID = fmt.Sprintf("tat-%d", r.seq)
	stored := *tat
	r.pairs[key] = &stored
	return true, nil
}

func (r *fakeTATRepo) ListAll(_ context.Context) ([]domain.SRTATDays, error) {
	out := []domain.SRTATDays{}
	for _, tat := range r.pairs {
		out = append(out, *tat)
	}
	return out, nil
}

func (r *fakeTATRepo) WithTx(pgx.Tx) repository.TATRepository { return r }

type fakeCommentRepo struct {
	seq        int
	comments   []domain.SRComment
	failCreate int
}

func newFakeCommentRepo() *fakeCommentRepo { return &fakeCommentRepo{} }

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.SRComment) error {
	if r.failCreate > 0 {
		r.failCreate--
		return errors.New("comment insert failed")
	}
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	comment.UpdatedAt = comment.CreatedAt
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByServiceRequest(_ context.Context, serviceRequestID string) ([]domain.SRComment, error) {
	out := []domain.SRComment{}
	for _, comment := range r.comments {
		if comment.ServiceRequestID == serviceRequestID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) WithTx(tx pgx.Tx) repository.SRCommentRepository {
	if ftx, ok := tx.(*fakeTx); ok {
		return &txCommentRepo{repo: r, tx: ftx}
	}
	return r
}

type txCommentRepo struct {
	repo *fakeCommentRepo
	tx   *fakeTx
}

func (w *txCommentRepo) Create(ctx context.Context, comment *domain.SRComment) error {
	if err := w.tx.statementCheck(); err != nil {
		return err
	}
	if err := w.repo.Create(ctx, comment); err != nil {
		w.tx.aborted = true
		return err
	}
	return nil
}

func (w *txCommentRepo) ListByServiceRequest(ctx context.Context, serviceRequestID string) ([]domain.SRComment, error) {
	if err := w.tx.statementCheck(); err != nil {
		return nil, err
	}
	return w.repo.ListByServiceRequest(ctx, serviceRequestID)
}

func (w *txCommentRepo) WithTx(tx pgx.Tx) repository.SRCommentRepository {
	return w.repo.WithTx(tx)
}

// fakeDB implements TxBeginner over the in-memory fakes with rollback to
// a snapshot, nested savepoints, and aborted-transaction propagation.
type fakeDB struct {
	srs      *fakeSRRepo
	comments *fakeCommentRepo
}

func (db *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{db: db, snap: db.snapshot()}, nil
}

type dbSnapshot struct {
	srByID     map[string]*domain.ServiceRequest
	srByNumber map[string]string
	comments   []domain.SRComment
}

func (db *fakeDB) snapshot() dbSnapshot {
	db.srs.mu.Lock()
	defer db.srs.mu.Unlock()
	byID := make(map[string]*domain.ServiceRequest, len(db.srs.byID))
	for id, sr := range db.srs.byID {
		copied := *sr
		byID[id] = &copied
	}
	byNumber := make(map[string]string, len(db.srs.byNumber))
	for number, id := range db.srs.byNumber {
		byNumber[number] = id
	}
	return dbSnapshot{
		srByID:     byID,
		srByNumber: byNumber,
		comments:   append([]domain.SRComment{}, db.comments.comments...),
	}
}

func (db *fakeDB) restore(snap dbSnapshot) {
	db.srs.mu.Lock()
	db.srs.byID = snap.srByID
	db.srs.byNumber = snap.srByNumber
	db.srs.mu.Unlock()
	db.comments.comments = snap.comments
}

// fakeTx is a pgx.Tx stand-in; only Begin/Commit/Rollback are usable, the
// embedded interface covers the rest of the method set.
type fakeTx struct {
	pgx.Tx
	db      *fakeDB
	parent  *fakeTx
	snap    dbSnapshot
	aborted bool
	closed  bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	if err := t.statementCheck(); err != nil {
		return nil, err
	}
	return &fakeTx{db: t.db, parent: t, snap: t.db.snapshot()}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	if err := t.statementCheck(); err != nil {
		return err
	}
	t.closed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.db.restore(t.snap)
	t.aborted = false
	t.closed = true
	return nil
}

// statementCheck fails like Postgres does once any statement in the
// transaction (or an enclosing one) has errored.
func (t *fakeTx) statementCheck() error {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.aborted {
			return &pgconn.PgError{
				Code:    "25P02",
				Message: "current transaction is aborted, commands ignored until end of transaction block",
			}
		}
	}
	return nil
}

func testUser(id string, role domain.UserRole) *domain.User {
	return &domain.User{
		ID:     id,
		Name:   "Test " + id,
		Email:  id + "@example.com",
		Role:   role,
		Status: domain.UserStatusActive,
	}
}

type srFixture struct {
	svc      *SRService
	srs      *fakeSRRepo
	masters  *fakeMasterRepo
	tats     *fakeTATRepo
	comments *fakeCommentRepo
}

func newSRFixture() *srFixture {
	srs := newFakeSRRepo()
	masters := newFakeMasterRepo()
	tats := newFakeTATRepo()
	comments := newFakeCommentRepo()
	svc := NewSRService(SRDependencies{
		SRRepo:      srs,
		MasterRepo:  masters,
		TATRepo:     tats,
		CommentRepo: comments,
	})
	return &srFixture{svc: svc, srs: srs, masters: masters, tats: tats, comments: comments}
}

// newTxSRFixture runs the service against the transactional fake DB so
// rollback and savepoint behavior is exercised.
func newTxSRFixture() *srFixture {
	fix := newSRFixture()
	fix.svc.db = &fakeDB{srs: fix.srs, comments: fix.comments}
	return fix
}

func validCreateInput() SRCreateInput {
	return SRCreateInput{
		Category:    string(domain.CategoryUnparented),
		NatureCode:  "complaint",
		TypeCode:    "card_issue",
		Subject:     "Card not working",
		Description: "My debit card stopped working at every ATM yesterday.",
		Email:       "customer@example.com",
		Phone:       "+911234567890",
	}
}
