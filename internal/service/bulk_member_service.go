package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/capstack-hq/capstack-backend/internal/jobs"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/socket"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

const (
	// Below this many pending creations for a role, rows are inserted one at
	// a time and each success triggers its own invitation email. At or above
	// it, rows go through chunked bulk inserts without per-user mailers.
	perRowThreshold = 10

	// Maximum rows per bulk INSERT statement.
	batchSize = 100

	genericErrorMessage = "An unexpected error occurred. Please try again."
)

// ============================================
// Bulk Member Service
// ============================================

// BulkMemberService reconciles a company's membership against a submitted
// list of (email, role) entries: validates, dedupes, diffs against current
// role rows, applies the changes in one transaction, and queues invitation
// emails after commit.
type BulkMemberService interface {
	BatchManageMembers(ctx context.Context, companyID, actingUserID string, members []models.BulkMemberEntry) *models.BulkMemberResult
}

type bulkMemberService struct {
	userRepo    repository.UserRepository
	memberRepo  repository.MemberRepository
	queue       jobs.Queue
	broadcaster *socket.Broadcaster
	validate    *validator.Validate
}

func NewBulkMemberService(
	userRepo repository.UserRepository,
	memberRepo repository.MemberRepository,
	queue jobs.Queue,
	broadcaster *socket.Broadcaster,
) BulkMemberService {
	return &bulkMemberService{
		userRepo:    userRepo,
		memberRepo:  memberRepo,
		queue:       queue,
		broadcaster: broadcaster,
		validate:    validator.New(),
	}
}

// plannedAdd is one existing-user role creation queued by the plan builder.
type plannedAdd struct {
	userID string
	email  string
}

// memberPlan is the diff between submitted entries and current role rows.
type memberPlan struct {
	adminRemovals  []string
	lawyerRemovals []string
	adminAdds      []plannedAdd
	lawyerAdds     []plannedAdd
	invites        []models.BulkMemberEntry
}

// execState accumulates counters, per-row errors and pending invitation
// messages across the executor.
type execState struct {
	invited int
	updated int
	errors  []models.BulkMemberError
	pending []jobs.InvitationMessage
}

func (s *bulkMemberService) BatchManageMembers(ctx context.Context, companyID, actingUserID string, members []models.BulkMemberEntry) (result *models.BulkMemberResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[BulkMember] 🔥 Panic during reconciliation for company %s: %v\n%s",
				companyID, r, debug.Stack())
			result = &models.BulkMemberResult{
				Success: false,
				Errors: []models.BulkMemberError{
					{Field: "base", Message: genericErrorMessage},
				},
			}
		}
	}()

	if len(members) == 0 {
		return &models.BulkMemberResult{
			Success: false,
			Errors: []models.BulkMemberError{
				{Field: "members", Message: "No workspace members provided"},
			},
		}
	}

	if errs := s.validateEntries(members); len(errs) > 0 {
		return &models.BulkMemberResult{Success: false, Errors: errs}
	}

	normalized := s.dedupe(ctx, actingUserID, members)
	if len(normalized) == 0 {
		return &models.BulkMemberResult{Success: true}
	}

	emails := make([]string, 0, len(normalized))
	for email := range normalized {
		emails = append(emails, email)
	}

	snapshots, err := s.userRepo.FindMemberSnapshots(ctx, companyID, emails)
	if err != nil {
		log.Printf("[BulkMember] ❌ Failed to load member snapshots for company %s: %v", companyID, err)
		return &models.BulkMemberResult{
			Success: false,
			Errors:  []models.BulkMemberError{{Field: "base", Message: genericErrorMessage}},
		}
	}

	plan := buildPlan(normalized, snapshots)

	st := &execState{}
	err = s.memberRepo.InTx(ctx, func(tx repository.MemberTx) error {
		// Removals first so a user moving between role tables never trips
		// the unique constraint on the table they are joining.
		if err := tx.RemoveAdmins(ctx, companyID, plan.adminRemovals); err != nil {
			return err
		}
		if err := tx.RemoveLawyers(ctx, companyID, plan.lawyerRemovals); err != nil {
			return err
		}
		if err := s.createRoleRows(ctx, tx, companyID, types.RoleAdmin, plan.adminAdds, st); err != nil {
			return err
		}
		return s.createRoleRows(ctx, tx, companyID, types.RoleLawyer, plan.lawyerAdds, st)
	})
	if err != nil {
		log.Printf("[BulkMember] ❌ Reconciliation transaction failed for company %s: %v", companyID, err)
		return &models.BulkMemberResult{
			Success: false,
			Errors:  []models.BulkMemberError{{Field: "base", Message: genericErrorMessage}},
		}
	}

	// New-user invites never touch the database here; the async worker owns
	// placeholder-account creation.
	for _, invite := range plan.invites {
		st.pending = append(st.pending, jobs.InvitationMessage{
			Type:          types.InvitationKindNewUser,
			Email:         invite.Email,
			Role:          invite.Role,
			CompanyID:     companyID,
			CurrentUserID: actingUserID,
		})
		st.invited++
	}

	// Post-commit only: a queued invitation must never reference a role row
	// that was rolled back.
	if len(st.pending) > 0 && s.queue != nil {
		if err := s.queue.Enqueue(ctx, st.pending); err != nil {
			log.Printf("[BulkMember] ⚠️ Failed to enqueue %d invitation(s) for company %s: %v",
				len(st.pending), companyID, err)
		} else if s.broadcaster != nil {
			for _, msg := range st.pending {
				if msg.Type == types.InvitationKindNewUser {
					s.broadcaster.NotifyInvitationSent(actingUserID, msg.Email, msg.Role)
				}
			}
		}
	}

	if len(st.errors) > 0 {
		return &models.BulkMemberResult{Success: false, Errors: st.errors}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMembersUpdated(companyID, map[string]interface{}{
			"invitedCount": st.invited,
			"updatedCount": st.updated,
		}, actingUserID)
	}

	return &models.BulkMemberResult{
		Success:        true,
		InvitedCount:   st.invited,
		UpdatedCount:   st.updated,
		TotalProcessed: st.invited + st.updated,
	}
}

// validateEntries checks every entry exhaustively and aggregates errors
// across the whole list before returning.
func (s *bulkMemberService) validateEntries(members []models.BulkMemberEntry) []models.BulkMemberError {
	var errs []models.BulkMemberError
	for i := range members {
		idx := i
		email := strings.TrimSpace(members[i].Email)
		role := strings.TrimSpace(members[i].Role)

		if email == "" {
			errs = append(errs, models.BulkMemberError{Index: &idx, Field: "email", Message: "Email is required"})
		} else if s.validate.Var(email, "email") != nil {
			errs = append(errs, models.BulkMemberError{Index: &idx, Field: "email", Message: "Email format is invalid"})
		}

		if role == "" {
			errs = append(errs, models.BulkMemberError{Index: &idx, Field: "role", Message: "Role is required"})
		} else if !types.IsValidMemberRole(role) {
			errs = append(errs, models.BulkMemberError{Index: &idx, Field: "role", Message: fmt.Sprintf("Invalid role: %s", role)})
		}
	}
	return errs
}

// dedupe folds entries into a normalized email → role map. Later entries win
// for a duplicate key, and the acting user's own email is dropped silently.
func (s *bulkMemberService) dedupe(ctx context.Context, actingUserID string, members []models.BulkMemberEntry) map[string]string {
	actingEmail := ""
	if actingUser, err := s.userRepo.FindByID(ctx, actingUserID); err == nil && actingUser != nil {
		actingEmail = normalizeEmail(actingUser.Email)
	}

	normalized := make(map[string]string, len(members))
	for _, m := range members {
		email := normalizeEmail(m.Email)
		if email == actingEmail {
			continue
		}
		normalized[email] = strings.TrimSpace(m.Role)
	}
	return normalized
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// buildPlan diffs target roles against current role rows. The skip condition
// is deliberately narrow: a user is skipped only when they hold exactly the
// target role and not the other. A user holding both roles is stripped of
// the non-target role and re-added, normalizing the double-role state.
func buildPlan(normalized map[string]string, snapshots []*repository.MemberSnapshot) *memberPlan {
	byEmail := make(map[string]*repository.MemberSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byEmail[normalizeEmail(snap.Email)] = snap
	}

	plan := &memberPlan{}
	for email, role := range normalized {
		snap, exists := byEmail[email]
		if !exists {
			plan.invites = append(plan.invites, models.BulkMemberEntry{Email: email, Role: role})
			continue
		}

		targetAdmin := role == types.RoleAdmin
		if targetAdmin && snap.IsAdmin && !snap.IsLawyer {
			continue
		}
		if !targetAdmin && snap.IsLawyer && !snap.IsAdmin {
			continue
		}

		if snap.IsAdmin {
			plan.adminRemovals = append(plan.adminRemovals, snap.UserID)
		}
		if snap.IsLawyer {
			plan.lawyerRemovals = append(plan.lawyerRemovals, snap.UserID)
		}
		add := plannedAdd{userID: snap.UserID, email: email}
		if targetAdmin {
			plan.adminAdds = append(plan.adminAdds, add)
		} else {
			plan.lawyerAdds = append(plan.lawyerAdds, add)
		}
	}
	return plan
}

// createRoleRows inserts the planned role rows for one role table. Small
// lists go row by row, each success queuing its own invitation email. Large
// lists go through chunked bulk inserts counted as silent updates; a failed
// bulk statement is retried row by row for that chunk only.
func (s *bulkMemberService) createRoleRows(ctx context.Context, tx repository.MemberTx, companyID, role string, adds []plannedAdd, st *execState) error {
	if len(adds) == 0 {
		return nil
	}

	createOne := func(ctx context.Context, userID string) (string, error) {
		if role == types.RoleAdmin {
			m := &repository.CompanyAdministrator{CompanyID: companyID, UserID: userID}
			if err := tx.CreateAdmin(ctx, m); err != nil {
				return "", err
			}
			return m.ID, nil
		}
		m := &repository.CompanyLawyer{CompanyID: companyID, UserID: userID}
		if err := tx.CreateLawyer(ctx, m); err != nil {
			return "", err
		}
		return m.ID, nil
	}

	if len(adds) < perRowThreshold {
		for _, add := range adds {
			memberID, err := createOne(ctx, add.userID)
			if err != nil {
				if !errors.Is(err, repository.ErrDuplicateMember) {
					return err
				}
				st.errors = append(st.errors, models.BulkMemberError{
					Email:   add.email,
					Field:   "email",
					Message: "User already holds this role",
				})
				continue
			}
			st.invited++
			st.pending = append(st.pending, jobs.InvitationMessage{
				Type:              types.InvitationKindExistingUser,
				Email:             add.email,
				Role:              role,
				CompanyID:         companyID,
				CompanyMemberID:   memberID,
				CompanyMemberType: types.MemberTypeForRole(role),
				UserID:            add.userID,
			})
		}
		return nil
	}

	for start := 0; start < len(adds); start += batchSize {
		end := start + batchSize
		if end > len(adds) {
			end = len(adds)
		}
		chunk := adds[start:end]

		err := s.createBatch(ctx, tx, companyID, role, chunk)
		if err == nil {
			st.updated += len(chunk)
			continue
		}
		if !errors.Is(err, repository.ErrBatchStatement) {
			return err
		}

		log.Printf("[BulkMember] ⚠️ Bulk insert of %d %s row(s) failed, retrying individually: %v",
			len(chunk), role, err)
		for _, add := range chunk {
			if _, err := createOne(ctx, add.userID); err != nil {
				if !errors.Is(err, repository.ErrDuplicateMember) {
					return err
				}
				st.errors = append(st.errors, models.BulkMemberError{
					Email:   add.email,
					Field:   "email",
					Message: "User already holds this role",
				})
				continue
			}
			st.updated++
		}
	}
	return nil
}

func (s *bulkMemberService) createBatch(ctx context.Context, tx repository.MemberTx, companyID, role string, chunk []plannedAdd) error {
	if role == types.RoleAdmin {
		ms := make([]*repository.CompanyAdministrator, len(chunk))
		for i, add := range chunk {
			ms[i] = &repository.CompanyAdministrator{CompanyID: companyID, UserID: add.userID}
		}
		return tx.CreateAdminsBatch(ctx, ms)
	}
	ms := make([]*repository.CompanyLawyer, len(chunk))
	for i, add := range chunk {
		ms[i] = &repository.CompanyLawyer{CompanyID: companyID, UserID: add.userID}
	}
	return tx.CreateLawyersBatch(ctx, ms)
}
