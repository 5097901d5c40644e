package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sr-service/internal/domain"
	"github.com/spec-kit/sr-service/internal/repository"
	apperrors "github.com/spec-kit/sr-service/pkg/util/errorutil"
)

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SRCreateInput)
		field   string
		message string
	}{
		{
			name:    "unknown category",
			mutate:  func(in *SRCreateInput) { in.Category = "weird" },
			field:   "category",
			message: "Please select a valid SR category",
		},
		{
			name: "parented without account number",
			mutate: func(in *SRCreateInput) {
				in.Category = string(domain.CategoryParented)
				in.AccountNumber = "  "
			},
			field:   "account_number",
			message: "Account number is required for Parented SR",
		},
		{
			name:    "missing nature",
			mutate:  func(in *SRCreateInput) { in.NatureCode = "" },
			field:   "sr_nature",
			message: "Please select SR nature",
		},
		{
			name:    "missing type",
			mutate:  func(in *SRCreateInput) { in.TypeCode = "" },
			field:   "sr_type",
			message: "Please select SR type",
		},
		{
			name:    "subject four chars",
			mutate:  func(in *SRCreateInput) { in.Subject = "abcd" },
			field:   "subject",
			message: "Subject must be at least 5 characters",
		},
		{
			name:    "description nineteen chars",
			mutate:  func(in *SRCreateInput) { in.Description = strings.Repeat("x", 19) },
			field:   "description",
			message: "Description must be at least 20 characters",
		},
		{
			name:    "missing email",
			mutate:  func(in *SRCreateInput) { in.Email = "" },
			field:   "email",
			message: "Email is required",
		},
		{
			name:    "missing phone",
			mutate:  func(in *SRCreateInput) { in.Phone = "" },
			field:   "phone",
			message: "Phone number is required",
		},
		{
			name:    "phone too short",
			mutate:  func(in *SRCreateInput) { in.Phone = "12345678" },
			field:   "phone",
			message: "Phone must be in format: '+999999999'. Up to 15 digits.",
		},
		{
			name:    "phone with letters",
			mutate:  func(in *SRCreateInput) { in.Phone = "+91abc4567890" },
			field:   "phone",
			message: "Phone must be in format: '+999999999'. Up to 15 digits.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fix := newSRFixture()
			input := validCreateInput()
			tc.mutate(&input)

			_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
			require.Error(t, err)

			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
			assert.Equal(t, tc.message, domainErr.Details[tc.field])
			assert.Empty(t, fix.srs.byID, "nothing persisted on validation failure")
		})
	}
}

func TestCreateCountsCharactersNotBytes(t *testing.T) {
	fix := newSRFixture()
	input := validCreateInput()
	// 4 runes but 12 bytes; a byte count would let this through
	input.Subject = strings.Repeat("日", 4)

	_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Subject must be at least 5 characters", domainErr.Details["subject"])

	input.Subject = strings.Repeat("日", 5)
	input.Description = strings.Repeat("日", 20)
	_, err = fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	assert.NoError(t, err)
}

func TestCreateBoundaryLengthsAccepted(t *testing.T) {
	fix := newSRFixture()
	input := validCreateInput()
	input.Subject = strings.Repeat("s", 5)
	input.Description = strings.Repeat("d", 20)

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("s", 5), sr.Subject)
}

func TestCreateOpensUnassignedForCustomer(t *testing.T) {
	fix := newSRFixture()

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOpen, sr.StatusCode)
	assert.Regexp(t, srNumberFormat, sr.SRNumber)
	require.NotNil(t, sr.CreatedBy)
	assert.Equal(t, "u1", *sr.CreatedBy)
	assert.Nil(t, sr.AssignedTo)
	assert.Nil(t, sr.ClosedBy)
	assert.Nil(t, sr.ClosedAt)
	assert.Nil(t, sr.AccountNumber, "unparented requests carry no account number")
}

func TestCreateSelfAssignsForStaff(t *testing.T) {
	fix := newSRFixture()

	sr, err := fix.svc.Create(context.Background(), testUser("agent1", domain.RoleAgent), validCreateInput())
	require.NoError(t, err)
	require.NotNil(t, sr.AssignedTo)
	assert.Equal(t, "agent1", *sr.AssignedTo)
}

func TestCreateParentedKeepsAccountNumber(t *testing.T) {
	fix := newSRFixture()
	input := validCreateInput()
	input.Category = string(domain.CategoryParented)
	input.AccountNumber = " 1234567890 "

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	require.NoError(t, err)
	require.NotNil(t, sr.AccountNumber)
	assert.Equal(t, "1234567890", *sr.AccountNumber)
}

func TestCreateBindsActiveTAT(t *testing.T) {
	fix := newSRFixture()
	_, err := fix.tats.CreateIfMissing(context.Background(), &domain.SRTATDays{
		NatureID: "nature-complaint",
		TypeID:   "type-card_issue",
		TATDays:  10,
		IsActive: true,
	})
	require.NoError(t, err)

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err)
	assert.NotNil(t, sr.TATID)
}

func TestCreateWithoutTATMapping(t *testing.T) {
	fix := newSRFixture()

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err)
	assert.Nil(t, sr.TATID, "missing mapping is a valid zero-TAT state")
}

func TestCreateUnknownNature(t *testing.T) {
	fix := newSRFixture()
	input := validCreateInput()
	input.NatureCode = "nonexistent"

	_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCreateInactiveTypeRejected(t *testing.T) {
	fix := newSRFixture()
	fix.masters.addType("legacy", false)
	input := validCreateInput()
	input.TypeCode = "legacy"

	_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCreateRetriesOnUniqueViolation(t *testing.T) {
	fix := newSRFixture()
	fix.srs.failCreate = 2

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err)
	assert.NotEmpty(t, sr.ID)
}

func TestCreateRetryRecoversInsideTransaction(t *testing.T) {
	fix := newTxSRFixture()
	fix.srs.failCreate = 2

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err, "a uniqueness violation must abort only its savepoint, not the transaction")
	assert.NotEmpty(t, sr.ID)
	assert.Len(t, fix.srs.byID, 1)
}

func TestCreateConflictRollsBackTransaction(t *testing.T) {
	fix := newTxSRFixture()
	fix.srs.failCreate = createAttempts

	_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Empty(t, fix.srs.byID)
}

func TestConcurrentCreationsYieldDistinctNumbers(t *testing.T) {
	fix := newSRFixture()
	const workers = 40

	numbers := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
			assert.NoError(t, err)
			if err == nil {
				numbers <- sr.SRNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for number := range numbers {
		assert.False(t, seen[number], "duplicate SR number %s", number)
		seen[number] = true
	}
	assert.Len(t, seen, workers)
}

func TestCreateProbesPastTakenNumbers(t *testing.T) {
	fix := newSRFixture()
	gen := NewSRNumberGenerator()
	gen.now = func() time.Time {
		// 123456789 ns -> counter 1234
		return time.Date(2026, 3, 15, 9, 30, 45, 123456789, time.UTC)
	}
	fix.svc.numbers = gen
	fix.srs.takenProbe["SR-20260315-093045-1234"] = true

	sr, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "SR-20260315-093045-1235", sr.SRNumber)
}

func TestCreateGivesUpAfterRepeatedUniqueViolations(t *testing.T) {
	fix := newSRFixture()
	fix.srs.failCreate = createAttempts

	_, err := fix.svc.Create(context.Background(), testUser("u1", domain.RoleUser), validCreateInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		from    domain.StatusCode
		to      domain.StatusCode
		allowed bool
	}{
		{domain.StatusOpen, domain.StatusInProgress, true},
		{domain.StatusOpen, domain.StatusResolved, true},
		{domain.StatusOpen, domain.StatusClosed, true},
		{domain.StatusInProgress, domain.StatusResolved, true},
		{domain.StatusInProgress, domain.StatusClosed, true},
		{domain.StatusInProgress, domain.StatusOpen, false},
		{domain.StatusResolved, domain.StatusInProgress, true},
		{domain.StatusResolved, domain.StatusClosed, true},
		{domain.StatusResolved, domain.StatusOpen, false},
		{domain.StatusClosed, domain.StatusOpen, false},
		{domain.StatusClosed, domain.StatusInProgress, false},
		{domain.StatusClosed, domain.StatusResolved, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			fix := newSRFixture()
			agent := testUser("agent1", domain.RoleAgent)
			sr := createTestSR(t, fix, tc.from)

			_, err := fix.svc.Transition(context.Background(), agent, sr.ID, tc.to, "")
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
			}
		})
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	fix := newSRFixture()
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusOpen)
	before, err := fix.srs.GetByID(context.Background(), sr.ID)
	require.NoError(t, err)

	result, err := fix.svc.Transition(context.Background(), agent, sr.ID, domain.StatusOpen, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, result.StatusCode)

	after, err := fix.srs.GetByID(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "no write on a no-op transition")
}

func TestTransitionForbiddenForCustomer(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.Transition(context.Background(), testUser("u1", domain.RoleUser), sr.ID, domain.StatusInProgress, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	stored, err := fix.srs.GetByID(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.StatusCode, "request untouched after denial")
}

func TestTransitionToClosedStampsCloser(t *testing.T) {
	fix := newSRFixture()
	fixedNow := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	fix.svc.now = func() time.Time { return fixedNow }
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusResolved)

	closed, err := fix.svc.Transition(context.Background(), agent, sr.ID, domain.StatusClosed, "")
	require.NoError(t, err)

	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "agent1", *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, fixedNow, *closed.ClosedAt)
}

func TestTransitionNotesBecomeInternalComment(t *testing.T) {
	fix := newSRFixture()
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.Transition(context.Background(), agent, sr.ID, domain.StatusInProgress, "picked up, checking with branch")
	require.NoError(t, err)

	comments, err := fix.comments.ListByServiceRequest(context.Background(), sr.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].IsInternal)
	assert.Equal(t, "picked up, checking with branch", comments[0].Comment)
}

func TestTransitionRollsBackStatusWhenNotesWriteFails(t *testing.T) {
	fix := newTxSRFixture()
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusOpen)

	fix.comments.failCreate = 1
	_, err := fix.svc.Transition(context.Background(), agent, sr.ID, domain.StatusInProgress, "note that will not stick")
	require.Error(t, err)

	stored, err := fix.srs.GetByID(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.StatusCode, "status write rolled back with the failed comment")

	comments, err := fix.comments.ListByServiceRequest(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestGetBySRNumberStaffLookup(t *testing.T) {
	fix := newSRFixture()
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSRFor(t, fix, "u1")

	found, err := fix.svc.GetBySRNumber(context.Background(), agent, sr.SRNumber)
	require.NoError(t, err)
	assert.Equal(t, sr.ID, found.ID)

	_, err = fix.svc.GetBySRNumber(context.Background(), testUser("u1", domain.RoleUser), sr.SRNumber)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = fix.svc.GetBySRNumber(context.Background(), agent, "SR-19700101-000000-0000")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAssignTakesRequest(t *testing.T) {
	fix := newSRFixture()
	agent := testUser("agent2", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusOpen)

	assigned, err := fix.svc.Assign(context.Background(), agent, sr.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "agent2", *assigned.AssignedTo)
}

func TestAssignForbiddenForCustomer(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.Assign(context.Background(), testUser("u1", domain.RoleUser), sr.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestAddCommentRejectsBlank(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.AddComment(context.Background(), testUser("u1", domain.RoleUser), sr.ID, "   ", false)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "Comment cannot be empty", domainErr.Details["comment"])
}

func TestAddInternalCommentStaffOnly(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.AddComment(context.Background(), testUser("u1", domain.RoleUser), sr.ID, "sneaky note", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestAddCommentOwnerOnlyForCustomers(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.AddComment(context.Background(), testUser("u2", domain.RoleUser), sr.ID, "not my request", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestListCommentsFiltersInternalForCustomers(t *testing.T) {
	fix := newSRFixture()
	owner := testUser("u1", domain.RoleUser)
	agent := testUser("agent1", domain.RoleAgent)
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.AddComment(context.Background(), owner, sr.ID, "please expedite this request", false)
	require.NoError(t, err)
	_, err = fix.svc.AddComment(context.Background(), agent, sr.ID, "escalated to branch manager", true)
	require.NoError(t, err)
	_, err = fix.svc.AddComment(context.Background(), agent, sr.ID, "we are working on it", false)
	require.NoError(t, err)

	visible, err := fix.svc.ListComments(context.Background(), owner, sr.ID)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	for _, comment := range visible {
		assert.False(t, comment.IsInternal)
	}

	all, err := fix.svc.ListComments(context.Background(), agent, sr.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetForViewerEnforcesOwnership(t *testing.T) {
	fix := newSRFixture()
	sr := createTestSR(t, fix, domain.StatusOpen)

	_, err := fix.svc.GetForViewer(context.Background(), testUser("u2", domain.RoleUser), sr.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	got, err := fix.svc.GetForViewer(context.Background(), testUser("agent1", domain.RoleAgent), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, sr.ID, got.ID)
}

func TestListForUserScopesToOwner(t *testing.T) {
	fix := newSRFixture()
	createTestSRFor(t, fix, "u1")
	createTestSRFor(t, fix, "u1")
	createTestSRFor(t, fix, "u2")

	own, err := fix.svc.ListForUser(context.Background(), "u1", repository.SRFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestListForStaffReturnsCounts(t *testing.T) {
	fix := newSRFixture()
	agent := testUser("agent1", domain.RoleAgent)
	createTestSRFor(t, fix, "u1")
	sr := createTestSRFor(t, fix, "u2")
	_, err := fix.svc.Transition(context.Background(), agent, sr.ID, domain.StatusResolved, "")
	require.NoError(t, err)

	requests, counts, err := fix.svc.ListForStaff(context.Background(), agent, repository.SRFilter{})
	require.NoError(t, err)
	assert.Len(t, requests, 2)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.Open)
	assert.Equal(t, int64(1), counts.Resolved)
}

func createTestSR(t *testing.T, fix *srFixture, status domain.StatusCode) *domain.ServiceRequest {
	t.Helper()
	sr := createTestSRFor(t, fix, "u1")
	if status == domain.StatusOpen {
		return sr
	}
	agent := testUser("seed-agent", domain.RoleAgent)
	result, err := fix.svc.Transition(context.Background(), agent, sr.ID, status, "")
	require.NoError(t, err)
	return result
}

func createTestSRFor(t *testing.T, fix *srFixture, creatorID string) *domain.ServiceRequest {
	t.Helper()
	sr, err := fix.svc.Create(context.Background(), testUser(creatorID, domain.RoleUser), validCreateInput())
	require.NoError(t, err)
	return sr
}
