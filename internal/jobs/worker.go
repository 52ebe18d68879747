package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/capstack-hq/capstack-backend/internal/email"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

// Worker drains the invitation queue: it materializes invited-user rows and
// sends the corresponding emails. It runs outside any request transaction,
// so a crash here never affects committed membership changes.
type Worker struct {
	queue             *RedisQueue
	userRepo          repository.UserRepository
	companyRepo       repository.CompanyRepository
	invitationRepo    repository.InvitationRepository
	emailSvc          *email.Service
	frontendURL       string
	invitationTTLDays int

	stop chan struct{}
}

func NewWorker(
	queue *RedisQueue,
	repos *repository.Repositories,
	emailSvc *email.Service,
	frontendURL string,
	invitationTTLDays int,
) *Worker {
	return &Worker{
		queue:             queue,
		userRepo:          repos.UserRepo,
		companyRepo:       repos.CompanyRepo,
		invitationRepo:    repos.InvitationRepo,
		emailSvc:          emailSvc,
		frontendURL:       frontendURL,
		invitationTTLDays: invitationTTLDays,
		stop:              make(chan struct{}),
	}
}

// Start launches the consume loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	log.Println("[Worker] 🚀 Invitation worker started")
	go w.run(ctx)
}

func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			log.Println("[Worker] Invitation worker stopped")
			return
		case <-ctx.Done():
			return
		default:
		}

		batch, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] ❌ Dequeue error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		for _, msg := range batch {
			if err := w.process(ctx, msg); err != nil {
				log.Printf("[Worker] ❌ Failed to process %s for %s: %v", msg.Type, msg.Email, err)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, msg InvitationMessage) error {
	switch msg.Type {
	case types.InvitationKindNewUser:
		return w.processNewUser(ctx, msg)
	case types.InvitationKindExistingUser:
		return w.processExistingUser(ctx, msg)
	default:
		return fmt.Errorf("unknown invitation type: %s", msg.Type)
	}
}

// processNewUser creates the placeholder user and invitation row, then sends
// the invite email. If a user signed up between enqueue and processing, the
// placeholder step is skipped and only the invitation is recorded.
func (w *Worker) processNewUser(ctx context.Context, msg InvitationMessage) error {
	user, err := w.userRepo.FindByEmail(ctx, msg.Email)
	if err != nil {
		return err
	}
	if user == nil {
		token := uuid.New().String()
		user = &repository.User{
			Email:           msg.Email,
			InvitationToken: &token,
		}
		if msg.CurrentUserID != "" {
			user.InvitedByID = &msg.CurrentUserID
		}
		if err := w.userRepo.CreateInvited(ctx, user); err != nil {
			return err
		}
	}

	invitation := &repository.Invitation{
		Email:     msg.Email,
		CompanyID: msg.CompanyID,
		Role:      msg.Role,
		Status:    types.InvitationPending,
		ExpiresAt: time.Now().AddDate(0, 0, w.invitationTTLDays),
	}
	if msg.CurrentUserID != "" {
		invitation.InvitedByID = &msg.CurrentUserID
	}
	if err := w.invitationRepo.Create(ctx, invitation); err != nil {
		return err
	}

	if w.emailSvc == nil {
		return nil
	}
	company, err := w.companyByID(ctx, msg.CompanyID)
	if err != nil || company == nil {
		return err
	}
	inviterName := ""
	if msg.CurrentUserID != "" {
		if inviter, err := w.userRepo.FindByID(ctx, msg.CurrentUserID); err == nil && inviter != nil {
			inviterName = inviter.Name
		}
	}
	return w.emailSvc.SendNewUserInvitation(msg.Email, email.NewUserInvitationData{
		InviterName:   inviterName,
		CompanyName:   company.Name,
		Role:          msg.Role,
		InviteURL:     fmt.Sprintf("%s/invite?token=%s", w.frontendURL, invitation.Token),
		ExpiresInDays: w.invitationTTLDays,
	})
}

// companyByID caches company lookups briefly: one bulk reconciliation
// enqueues many messages for the same company.
func (w *Worker) companyByID(ctx context.Context, id string) (*repository.Company, error) {
	key := "company:" + id
	var cached repository.Company
	if err := w.queue.redis.GetCache(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	company, err := w.companyRepo.FindByID(ctx, id)
	if err != nil || company == nil {
		return company, err
	}
	if err := w.queue.redis.SetCache(ctx, key, company, 5*time.Minute); err != nil {
		log.Printf("[Worker] ⚠️ Cache write failed for %s: %v", key, err)
	}
	return company, nil
}

func (w *Worker) processExistingUser(ctx context.Context, msg InvitationMessage) error {
	if w.emailSvc == nil {
		return nil
	}
	company, err := w.companyByID(ctx, msg.CompanyID)
	if err != nil || company == nil {
		return err
	}
	userName := ""
	if msg.UserID != "" {
		if user, err := w.userRepo.FindByID(ctx, msg.UserID); err == nil && user != nil {
			userName = user.Name
		}
	}
	return w.emailSvc.SendRoleAssigned(msg.Email, email.RoleAssignedData{
		UserName:    userName,
		CompanyName: company.Name,
		Role:        msg.Role,
		CompanyURL:  fmt.Sprintf("%s/companies/%s", w.frontendURL, company.ExternalID),
	})
}
