package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstack-hq/capstack-backend/internal/jobs"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

// ============================================
// Fakes
// ============================================

type fakeUserRepo struct {
	usersByID      map[string]*repository.User
	usersByEmail   map[string]*repository.User
	userByInvToken *repository.User
	snapshots      []*repository.MemberSnapshot
	snapshotErr    error

	gotSnapshotEmails []string
	activatedID       string
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*repository.User, error) {
	return f.usersByID[id], nil
}

func (f *fakeUserRepo) FindMemberSnapshots(_ context.Context, _ string, emails []string) ([]*repository.MemberSnapshot, error) {
	f.gotSnapshotEmails = emails
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.snapshots, nil
}

func (f *fakeUserRepo) Create(context.Context, *repository.User) error        { return nil }
func (f *fakeUserRepo) CreateInvited(context.Context, *repository.User) error { return nil }
func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*repository.User, error) {
	return f.usersByEmail[email], nil
}
func (f *fakeUserRepo) FindByInvitationToken(context.Context, string) (*repository.User, error) {
	return f.userByInvToken, nil
}
func (f *fakeUserRepo) ActivateInvited(_ context.Context, id, _, _ string) error {
	f.activatedID = id
	return nil
}
func (f *fakeUserRepo) Update(context.Context, *repository.User) error                { return nil }
func (f *fakeUserRepo) UpdateLastActive(context.Context, string) error                { return nil }
func (f *fakeUserRepo) UpdateStatusForInactive(context.Context, time.Duration) error  { return nil }
func (f *fakeUserRepo) SaveRefreshToken(context.Context, *repository.RefreshToken) error {
	return nil
}
func (f *fakeUserRepo) FindRefreshToken(context.Context, string) (*repository.RefreshToken, error) {
	return nil, nil
}
func (f *fakeUserRepo) DeleteRefreshToken(context.Context, string) error { return nil }

type fakeMemberTx struct {
	removedAdmins  []string
	removedLawyers []string
	createdAdmins  []string
	createdLawyers []string
	adminBatches   [][]string
	lawyerBatches  [][]string

	createAdminErr  map[string]error
	createLawyerErr map[string]error
	adminBatchErr   error
	lawyerBatchErr  error

	nextID int
}

func (t *fakeMemberTx) RemoveAdmins(_ context.Context, _ string, userIDs []string) error {
	t.removedAdmins = append(t.removedAdmins, userIDs...)
	return nil
}

func (t *fakeMemberTx) RemoveLawyers(_ context.Context, _ string, userIDs []string) error {
	t.removedLawyers = append(t.removedLawyers, userIDs...)
	return nil
}

func (t *fakeMemberTx) CreateAdmin(_ context.Context, m *repository.CompanyAdministrator) error {
	if err := t.createAdminErr[m.UserID]; err != nil {
		return err
	}
	t.nextID++
	m.ID = fmt.Sprintf("admin-row-%d", t.nextID)
	t.createdAdmins = append(t.createdAdmins, m.UserID)
	return nil
}

func (t *fakeMemberTx) CreateLawyer(_ context.Context, m *repository.CompanyLawyer) error {
	if err := t.createLawyerErr[m.UserID]; err != nil {
		return err
	}
	t.nextID++
	m.ID = fmt.Sprintf("lawyer-row-%d", t.nextID)
	t.createdLawyers = append(t.createdLawyers, m.UserID)
	return nil
}

func (t *fakeMemberTx) CreateAdminsBatch(_ context.Context, ms []*repository.CompanyAdministrator) error {
	if t.adminBatchErr != nil {
		return t.adminBatchErr
	}
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.UserID
	}
	t.adminBatches = append(t.adminBatches, ids)
	return nil
}

func (t *fakeMemberTx) CreateLawyersBatch(_ context.Context, ms []*repository.CompanyLawyer) error {
	if t.lawyerBatchErr != nil {
		return t.lawyerBatchErr
	}
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.UserID
	}
	t.lawyerBatches = append(t.lawyerBatches, ids)
	return nil
}

func (t *fakeMemberTx) EndContractorEngagements(context.Context, string, string) error { return nil }

type fakeMemberRepo struct {
	tx        *fakeMemberTx
	commitErr error
	panicInTx bool

	admins     map[string]bool
	adminCount int
	members    []*repository.CompanyMember

	txCalled     bool
	addedAdmins  []*repository.CompanyAdministrator
	addedLawyers []*repository.CompanyLawyer
}

func (r *fakeMemberRepo) InTx(_ context.Context, fn func(tx repository.MemberTx) error) error {
	r.txCalled = true
	if r.panicInTx {
		panic("connection reset mid-transaction")
	}
	if err := fn(r.tx); err != nil {
		return err
	}
	return r.commitErr
}

func (r *fakeMemberRepo) ListMembers(context.Context, string) ([]*repository.CompanyMember, error) {
	return r.members, nil
}
func (r *fakeMemberRepo) IsAdmin(_ context.Context, _ string, userID string) (bool, error) {
	return r.admins[userID], nil
}
func (r *fakeMemberRepo) CountAdmins(context.Context, string) (int, error) {
	return r.adminCount, nil
}
func (r *fakeMemberRepo) AddAdmin(_ context.Context, m *repository.CompanyAdministrator) error {
	r.addedAdmins = append(r.addedAdmins, m)
	return nil
}
func (r *fakeMemberRepo) AddLawyer(_ context.Context, m *repository.CompanyLawyer) error {
	r.addedLawyers = append(r.addedLawyers, m)
	return nil
}

type fakeQueue struct {
	batches [][]jobs.InvitationMessage
	err     error
}

func (q *fakeQueue) Enqueue(_ context.Context, messages []jobs.InvitationMessage) error {
	if q.err != nil {
		return q.err
	}
	q.batches = append(q.batches, messages)
	return nil
}

func (q *fakeQueue) allMessages() []jobs.InvitationMessage {
	var all []jobs.InvitationMessage
	for _, b := range q.batches {
		all = append(all, b...)
	}
	return all
}

// ============================================
// Helpers
// ============================================

const (
	testCompanyID = "company-1"
	testActorID   = "actor-1"
)

func newBulkFixture() (*fakeUserRepo, *fakeMemberRepo, *fakeQueue, BulkMemberService) {
	userRepo := &fakeUserRepo{
		usersByID: map[string]*repository.User{
			testActorID: {ID: testActorID, Email: "actor@capstack.io"},
		},
	}
	memberRepo := &fakeMemberRepo{tx: &fakeMemberTx{}}
	queue := &fakeQueue{}
	svc := NewBulkMemberService(userRepo, memberRepo, queue, nil)
	return userRepo, memberRepo, queue, svc
}

func entries(pairs ...string) []models.BulkMemberEntry {
	var out []models.BulkMemberEntry
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.BulkMemberEntry{Email: pairs[i], Role: pairs[i+1]})
	}
	return out
}

// ============================================
// Validation
// ============================================

func TestBatchManageMembers_EmptyList(t *testing.T) {
	_, memberRepo, queue, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, nil)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "members", result.Errors[0].Field)
	assert.Equal(t, "No workspace members provided", result.Errors[0].Message)
	assert.False(t, memberRepo.txCalled)
	assert.Empty(t, queue.batches)
}

func TestBatchManageMembers_ValidationErrors(t *testing.T) {
	_, memberRepo, _, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, []models.BulkMemberEntry{
		{Email: "", Role: "admin"},
		{Email: "not-an-email", Role: "lawyer"},
		{Email: "fine@capstack.io", Role: ""},
		{Email: "also-fine@capstack.io", Role: "janitor"},
	})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 4)

	byIndex := map[int]models.BulkMemberError{}
	for _, e := range result.Errors {
		require.NotNil(t, e.Index)
		byIndex[*e.Index] = e
	}

	assert.Equal(t, "email", byIndex[0].Field)
	assert.Equal(t, "Email is required", byIndex[0].Message)
	assert.Equal(t, "email", byIndex[1].Field)
	assert.Equal(t, "Email format is invalid", byIndex[1].Message)
	assert.Equal(t, "role", byIndex[2].Field)
	assert.Equal(t, "Role is required", byIndex[2].Message)
	assert.Equal(t, "role", byIndex[3].Field)
	assert.Equal(t, "Invalid role: janitor", byIndex[3].Message)

	assert.False(t, memberRepo.txCalled, "validation failure must not open a transaction")
}

func TestBatchManageMembers_OneEntryWithBothFieldsInvalid(t *testing.T) {
	_, _, _, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("", ""))

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Email is required", result.Errors[0].Message)
	assert.Equal(t, "Role is required", result.Errors[1].Message)
}

// ============================================
// Dedup and normalization
// ============================================

func TestBatchManageMembers_DedupLastEntryWins(t *testing.T) {
	userRepo, _, queue, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries(
			"dana@capstack.io", "admin",
			"  DANA@capstack.io ", "lawyer",
		))

	require.True(t, result.Success)
	assert.Equal(t, 1, result.InvitedCount)
	assert.Equal(t, []string{"dana@capstack.io"}, userRepo.gotSnapshotEmails)

	msgs := queue.allMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "dana@capstack.io", msgs[0].Email)
	assert.Equal(t, types.RoleLawyer, msgs[0].Role, "later duplicate entry wins")
}

func TestBatchManageMembers_ActingUserExcluded(t *testing.T) {
	_, memberRepo, queue, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("Actor@capstack.io", "lawyer"))

	require.True(t, result.Success)
	assert.Equal(t, 0, result.InvitedCount)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.False(t, memberRepo.txCalled, "self-only submission short-circuits before the transaction")
	assert.Empty(t, queue.batches)
}

// ============================================
// Planning
// ============================================

func TestBatchManageMembers_SkipsExactRoleMatch(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: "u1", Email: "ana@capstack.io", IsAdmin: true, IsLawyer: false},
		{UserID: "u2", Email: "ben@capstack.io", IsAdmin: false, IsLawyer: true},
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries(
			"ana@capstack.io", "admin",
			"ben@capstack.io", "lawyer",
		))

	require.True(t, result.Success)
	assert.Equal(t, 0, result.InvitedCount)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.Equal(t, 0, result.TotalProcessed)
	assert.Empty(t, memberRepo.tx.removedAdmins)
	assert.Empty(t, memberRepo.tx.removedLawyers)
	assert.Empty(t, memberRepo.tx.createdAdmins)
	assert.Empty(t, memberRepo.tx.createdLawyers)
	assert.Empty(t, queue.batches)
}

func TestBatchManageMembers_BothRolesGetNormalized(t *testing.T) {
	userRepo, memberRepo, _, svc := newBulkFixture()
	// u1 somehow holds both roles; submitting them as admin must strip the
	// lawyer row even though they already are an admin.
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: "u1", Email: "dual@capstack.io", IsAdmin: true, IsLawyer: true},
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("dual@capstack.io", "admin"))

	require.True(t, result.Success)
	assert.Equal(t, []string{"u1"}, memberRepo.tx.removedAdmins)
	assert.Equal(t, []string{"u1"}, memberRepo.tx.removedLawyers)
	assert.Equal(t, []string{"u1"}, memberRepo.tx.createdAdmins)
	assert.Equal(t, 1, result.InvitedCount)
}

func TestBatchManageMembers_RoleChange(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: "u1", Email: "flip@capstack.io", IsAdmin: true, IsLawyer: false},
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("flip@capstack.io", "lawyer"))

	require.True(t, result.Success)
	assert.Equal(t, []string{"u1"}, memberRepo.tx.removedAdmins)
	assert.Empty(t, memberRepo.tx.removedLawyers)
	assert.Equal(t, []string{"u1"}, memberRepo.tx.createdLawyers)

	msgs := queue.allMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.InvitationKindExistingUser, msgs[0].Type)
	assert.Equal(t, "flip@capstack.io", msgs[0].Email)
	assert.Equal(t, types.RoleLawyer, msgs[0].Role)
	assert.Equal(t, testCompanyID, msgs[0].CompanyID)
	assert.Equal(t, types.MemberTypeLawyer, msgs[0].CompanyMemberType)
	assert.Equal(t, "u1", msgs[0].UserID)
	assert.NotEmpty(t, msgs[0].CompanyMemberID)
}

// ============================================
// New users
// ============================================

func TestBatchManageMembers_NewUsersAreQueuedNotCreated(t *testing.T) {
	_, memberRepo, queue, svc := newBulkFixture()

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries(
			"new1@startup.dev", "admin",
			"new2@startup.dev", "lawyer",
		))

	require.True(t, result.Success)
	assert.Equal(t, 2, result.InvitedCount)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.Equal(t, 2, result.TotalProcessed)

	// Nothing touches the role tables for unknown emails.
	assert.Empty(t, memberRepo.tx.createdAdmins)
	assert.Empty(t, memberRepo.tx.createdLawyers)

	msgs := queue.allMessages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, types.InvitationKindNewUser, msg.Type)
		assert.Equal(t, testActorID, msg.CurrentUserID)
		assert.Empty(t, msg.CompanyMemberID)
	}
}

func TestBatchManageMembers_HundredNewUsers(t *testing.T) {
	_, _, queue, svc := newBulkFixture()

	var members []models.BulkMemberEntry
	for i := 0; i < 100; i++ {
		members = append(members, models.BulkMemberEntry{
			Email: fmt.Sprintf("hire%03d@startup.dev", i),
			Role:  "lawyer",
		})
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, members)

	require.True(t, result.Success)
	assert.Equal(t, 100, result.InvitedCount)
	assert.Equal(t, 100, result.TotalProcessed)
	require.Len(t, queue.batches, 1, "all invitations go out in one enqueue")
	assert.Len(t, queue.batches[0], 100)
}

// ============================================
// Per-row vs batch execution
// ============================================

func TestBatchManageMembers_PerRowPathBelowThreshold(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	var members []models.BulkMemberEntry
	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("user%d@capstack.io", i)
		userRepo.snapshots = append(userRepo.snapshots, &repository.MemberSnapshot{
			UserID: fmt.Sprintf("u%d", i), Email: email,
		})
		members = append(members, models.BulkMemberEntry{Email: email, Role: "admin"})
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, members)

	require.True(t, result.Success)
	assert.Equal(t, 5, result.InvitedCount)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.Len(t, memberRepo.tx.createdAdmins, 5)
	assert.Empty(t, memberRepo.tx.adminBatches, "below threshold must not bulk insert")
	assert.Len(t, queue.allMessages(), 5)
}

func TestBatchManageMembers_BatchPathAtThreshold(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	var members []models.BulkMemberEntry
	for i := 0; i < 15; i++ {
		email := fmt.Sprintf("user%02d@capstack.io", i)
		userRepo.snapshots = append(userRepo.snapshots, &repository.MemberSnapshot{
			UserID: fmt.Sprintf("u%d", i), Email: email,
		})
		members = append(members, models.BulkMemberEntry{Email: email, Role: "lawyer"})
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, members)

	require.True(t, result.Success)
	assert.Equal(t, 0, result.InvitedCount)
	assert.Equal(t, 15, result.UpdatedCount)
	assert.Equal(t, 15, result.TotalProcessed)
	require.Len(t, memberRepo.tx.lawyerBatches, 1)
	assert.Len(t, memberRepo.tx.lawyerBatches[0], 15)
	assert.Empty(t, memberRepo.tx.createdLawyers, "batch path must not insert row by row")
	assert.Empty(t, queue.batches, "bulk updates send no invitation emails")
}

func TestBatchManageMembers_BatchFallsBackPerRow(t *testing.T) {
	userRepo, memberRepo, _, svc := newBulkFixture()
	memberRepo.tx.lawyerBatchErr = fmt.Errorf("%w: duplicate in chunk", repository.ErrBatchStatement)
	memberRepo.tx.createLawyerErr = map[string]error{
		"u03": fmt.Errorf("%w: company_lawyers_company_id_user_id_key", repository.ErrDuplicateMember),
	}

	var members []models.BulkMemberEntry
	for i := 0; i < 12; i++ {
		email := fmt.Sprintf("user%02d@capstack.io", i)
		userRepo.snapshots = append(userRepo.snapshots, &repository.MemberSnapshot{
			UserID: fmt.Sprintf("u%02d", i), Email: email,
		})
		members = append(members, models.BulkMemberEntry{Email: email, Role: "lawyer"})
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID, members)

	assert.False(t, result.Success, "a duplicate surfaced by the fallback fails the run")
	assert.Len(t, memberRepo.tx.createdLawyers, 11, "fallback retries every row in the chunk")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "user03@capstack.io", result.Errors[0].Email)
	assert.Equal(t, "email", result.Errors[0].Field)
	assert.Equal(t, "User already holds this role", result.Errors[0].Message)
}

func TestBatchManageMembers_DuplicateOnPerRowPath(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: "u1", Email: "ok@capstack.io"},
		{UserID: "u2", Email: "dup@capstack.io"},
	}
	memberRepo.tx.createAdminErr = map[string]error{
		"u2": fmt.Errorf("%w: company_administrators_company_id_user_id_key", repository.ErrDuplicateMember),
	}

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries(
			"ok@capstack.io", "admin",
			"dup@capstack.io", "admin",
		))

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "dup@capstack.io", result.Errors[0].Email)
	assert.Equal(t, "User already holds this role", result.Errors[0].Message)

	// The successful row still committed and queued its email.
	assert.Equal(t, []string{"u1"}, memberRepo.tx.createdAdmins)
	assert.Len(t, queue.allMessages(), 1)
}

// ============================================
// Failure handling
// ============================================

func TestBatchManageMembers_CommitFailureReturnsGenericError(t *testing.T) {
	userRepo, memberRepo, queue, svc := newBulkFixture()
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: "u1", Email: "x@capstack.io"},
	}
	memberRepo.commitErr = fmt.Errorf("commit: connection refused")

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("x@capstack.io", "admin"))

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "base", result.Errors[0].Field)
	assert.Equal(t, "An unexpected error occurred. Please try again.", result.Errors[0].Message)
	assert.Empty(t, queue.batches, "nothing may be enqueued when the transaction fails")
}

func TestBatchManageMembers_SnapshotFailureReturnsGenericError(t *testing.T) {
	userRepo, memberRepo, _, svc := newBulkFixture()
	userRepo.snapshotErr = fmt.Errorf("query timeout")

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("x@capstack.io", "admin"))

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "base", result.Errors[0].Field)
	assert.False(t, memberRepo.txCalled)
}

func TestBatchManageMembers_PanicRecoversToGenericError(t *testing.T) {
	_, memberRepo, queue, svc := newBulkFixture()
	memberRepo.panicInTx = true

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("x@capstack.io", "admin"))

	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "base", result.Errors[0].Field)
	assert.Equal(t, "An unexpected error occurred. Please try again.", result.Errors[0].Message)
	assert.Empty(t, queue.batches)
}

func TestBatchManageMembers_EnqueueFailureDoesNotFailRun(t *testing.T) {
	_, _, queue, svc := newBulkFixture()
	queue.err = fmt.Errorf("redis down")

	result := svc.BatchManageMembers(context.Background(), testCompanyID, testActorID,
		entries("new@startup.dev", "lawyer"))

	assert.True(t, result.Success, "membership changes are committed; email delivery is best effort")
	assert.Equal(t, 1, result.InvitedCount)
}
