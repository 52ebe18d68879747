package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstack-hq/capstack-backend/internal/repository"
)

type fakeInvitationRepo struct {
	pending []*repository.Invitation

	updated []*repository.Invitation
}

func (r *fakeInvitationRepo) Create(context.Context, *repository.Invitation) error { return nil }
func (r *fakeInvitationRepo) FindByToken(_ context.Context, token string) (*repository.Invitation, error) {
	for _, inv := range r.pending {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, nil
}
func (r *fakeInvitationRepo) FindPendingByEmail(_ context.Context, email string) ([]*repository.Invitation, error) {
	var out []*repository.Invitation
	for _, inv := range r.pending {
		if inv.Email == email {
			out = append(out, inv)
		}
	}
	return out, nil
}
func (r *fakeInvitationRepo) FindPendingByCompany(_ context.Context, companyID string) ([]*repository.Invitation, error) {
	var out []*repository.Invitation
	for _, inv := range r.pending {
		if inv.CompanyID == companyID {
			out = append(out, inv)
		}
	}
	return out, nil
}
func (r *fakeInvitationRepo) Update(_ context.Context, inv *repository.Invitation) error {
	r.updated = append(r.updated, inv)
	return nil
}
func (r *fakeInvitationRepo) DeleteExpired(context.Context) (int, error) { return 0, nil }

func newMemberFixture() (*fakeUserRepo, *fakeMemberRepo, MemberService) {
	userRepo := &fakeUserRepo{
		usersByID: map[string]*repository.User{
			testActorID: {ID: testActorID, Email: "actor@capstack.io"},
		},
	}
	memberRepo := &fakeMemberRepo{
		tx:     &fakeMemberTx{},
		admins: map[string]bool{},
	}
	svc := NewMemberService(memberRepo, userRepo, &fakeInvitationRepo{}, nil)
	return userRepo, memberRepo, svc
}

func TestRemoveMember_RequiresAdmin(t *testing.T) {
	_, memberRepo, svc := newMemberFixture()

	err := svc.RemoveMember(context.Background(), testCompanyID, testActorID, "target-1")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, memberRepo.txCalled)
}

func TestRemoveMember_StripsAllRoles(t *testing.T) {
	_, memberRepo, svc := newMemberFixture()
	memberRepo.admins[testActorID] = true
	memberRepo.adminCount = 2

	err := svc.RemoveMember(context.Background(), testCompanyID, testActorID, "target-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"target-1"}, memberRepo.tx.removedAdmins)
	assert.Equal(t, []string{"target-1"}, memberRepo.tx.removedLawyers)
}

func TestRemoveMember_LastAdminGuard(t *testing.T) {
	_, memberRepo, svc := newMemberFixture()
	memberRepo.admins[testActorID] = true
	memberRepo.admins["target-1"] = true
	memberRepo.adminCount = 1

	err := svc.RemoveMember(context.Background(), testCompanyID, testActorID, "target-1")
	assert.ErrorIs(t, err, ErrLastAdmin)
	assert.False(t, memberRepo.txCalled)
}

func TestLeaveCompany_NotAMember(t *testing.T) {
	_, _, svc := newMemberFixture()

	err := svc.LeaveCompany(context.Background(), testCompanyID, testActorID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaveCompany(t *testing.T) {
	userRepo, memberRepo, svc := newMemberFixture()
	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: testActorID, Email: "actor@capstack.io", IsLawyer: true},
	}

	err := svc.LeaveCompany(context.Background(), testCompanyID, testActorID)
	require.NoError(t, err)
	assert.Equal(t, []string{testActorID}, memberRepo.tx.removedLawyers)
}

func TestListPendingInvitations_RequiresAdmin(t *testing.T) {
	userRepo := &fakeUserRepo{usersByID: map[string]*repository.User{}}
	memberRepo := &fakeMemberRepo{tx: &fakeMemberTx{}, admins: map[string]bool{}}
	invitationRepo := &fakeInvitationRepo{
		pending: []*repository.Invitation{
			{Email: "pending@capstack.io", CompanyID: testCompanyID, Role: "lawyer", Status: "pending"},
		},
	}
	svc := NewMemberService(memberRepo, userRepo, invitationRepo, nil)

	_, err := svc.ListPendingInvitations(context.Background(), testCompanyID, testActorID)
	assert.ErrorIs(t, err, ErrForbidden)

	memberRepo.admins[testActorID] = true
	invitations, err := svc.ListPendingInvitations(context.Background(), testCompanyID, testActorID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "pending@capstack.io", invitations[0].Email)
	assert.Equal(t, "lawyer", invitations[0].Role)
}

func TestListMembers_RequiresMembership(t *testing.T) {
	userRepo, memberRepo, svc := newMemberFixture()
	memberRepo.members = []*repository.CompanyMember{
		{UserID: "u1", Email: "ana@capstack.io", Role: "admin"},
	}

	_, err := svc.ListMembers(context.Background(), testCompanyID, testActorID)
	assert.ErrorIs(t, err, ErrForbidden)

	userRepo.snapshots = []*repository.MemberSnapshot{
		{UserID: testActorID, Email: "actor@capstack.io", IsAdmin: true},
	}
	members, err := svc.ListMembers(context.Background(), testCompanyID, testActorID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "ana@capstack.io", members[0].Email)
	assert.Equal(t, "admin", members[0].Role)
}
