package service

import (
	"context"
	"log"

	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/socket"
)

// ============================================
// Member Service
// ============================================

type MemberService interface {
	ListMembers(ctx context.Context, companyID, actingUserID string) ([]*models.MemberResponse, error)
	ListPendingInvitations(ctx context.Context, companyID, actingUserID string) ([]*models.InvitationResponse, error)
	RemoveMember(ctx context.Context, companyID, actingUserID, targetUserID string) error
	LeaveCompany(ctx context.Context, companyID, userID string) error
	IsAdmin(ctx context.Context, companyID, userID string) (bool, error)
}

type memberService struct {
	memberRepo     repository.MemberRepository
	userRepo       repository.UserRepository
	invitationRepo repository.InvitationRepository
	broadcaster    *socket.Broadcaster
}

func NewMemberService(
	memberRepo repository.MemberRepository,
	userRepo repository.UserRepository,
	invitationRepo repository.InvitationRepository,
	broadcaster *socket.Broadcaster,
) MemberService {
	return &memberService{
		memberRepo:     memberRepo,
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		broadcaster:    broadcaster,
	}
}

func (s *memberService) ListMembers(ctx context.Context, companyID, actingUserID string) ([]*models.MemberResponse, error) {
	isMember, err := s.isMember(ctx, companyID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}

	members, err := s.memberRepo.ListMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.MemberResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, &models.MemberResponse{
			ExternalID: m.ExternalID,
			UserID:     m.UserID,
			Email:      m.Email,
			Name:       m.Name,
			Role:       m.Role,
			Online:     s.broadcaster != nil && s.broadcaster.IsOnline(m.UserID),
			JoinedAt:   m.JoinedAt,
		})
	}
	return responses, nil
}

// ListPendingInvitations shows invitations that have been sent but not yet
// accepted. Admin-only: invitation emails are not visible to regular members.
func (s *memberService) ListPendingInvitations(ctx context.Context, companyID, actingUserID string) ([]*models.InvitationResponse, error) {
	isAdmin, err := s.memberRepo.IsAdmin(ctx, companyID, actingUserID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrForbidden
	}

	invitations, err := s.invitationRepo.FindPendingByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		responses = append(responses, &models.InvitationResponse{
			Email:     inv.Email,
			Role:      inv.Role,
			CompanyID: inv.CompanyID,
			Status:    inv.Status,
			ExpiresAt: inv.ExpiresAt,
			CreatedAt: inv.CreatedAt,
		})
	}
	return responses, nil
}

// RemoveMember strips every role the target holds in the company. Only
// admins may remove, and the last admin can never be removed.
func (s *memberService) RemoveMember(ctx context.Context, companyID, actingUserID, targetUserID string) error {
	isAdmin, err := s.memberRepo.IsAdmin(ctx, companyID, actingUserID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrForbidden
	}
	return s.removeAllRoles(ctx, companyID, targetUserID, actingUserID)
}

// LeaveCompany lets a member remove themselves, with the same last-admin
// guard as an admin-initiated removal.
func (s *memberService) LeaveCompany(ctx context.Context, companyID, userID string) error {
	isMember, err := s.isMember(ctx, companyID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotFound
	}
	return s.removeAllRoles(ctx, companyID, userID, userID)
}

func (s *memberService) IsAdmin(ctx context.Context, companyID, userID string) (bool, error) {
	return s.memberRepo.IsAdmin(ctx, companyID, userID)
}

func (s *memberService) isMember(ctx context.Context, companyID, userID string) (bool, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	snapshots, err := s.userRepo.FindMemberSnapshots(ctx, companyID, []string{normalizeEmail(user.Email)})
	if err != nil {
		return false, err
	}
	for _, snap := range snapshots {
		if snap.UserID == userID && (snap.IsAdmin || snap.IsLawyer) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memberService) removeAllRoles(ctx context.Context, companyID, targetUserID, actingUserID string) error {
	targetIsAdmin, err := s.memberRepo.IsAdmin(ctx, companyID, targetUserID)
	if err != nil {
		return err
	}
	if targetIsAdmin {
		count, err := s.memberRepo.CountAdmins(ctx, companyID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastAdmin
		}
	}

	err = s.memberRepo.InTx(ctx, func(tx repository.MemberTx) error {
		if err := tx.RemoveAdmins(ctx, companyID, []string{targetUserID}); err != nil {
			return err
		}
		if err := tx.RemoveLawyers(ctx, companyID, []string{targetUserID}); err != nil {
			return err
		}
		return tx.EndContractorEngagements(ctx, companyID, targetUserID)
	})
	if err != nil {
		return err
	}

	log.Printf("[Member] User %s removed from company %s by %s", targetUserID, companyID, actingUserID)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMemberRemoved(companyID, targetUserID, actingUserID)
	}
	return nil
}
