package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/capstack-hq/capstack-backend/internal/repository"
)

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron           *cron.Cron
	userRepo       repository.UserRepository
	invitationRepo repository.InvitationRepository
	dividendRepo   repository.DividendRepository
}

// NewScheduler creates a new scheduler
func NewScheduler(repos *repository.Repositories) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		userRepo:       repos.UserRepo,
		invitationRepo: repos.InvitationRepo,
		dividendRepo:   repos.DividendRepo,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Run every hour - expire stale invitations
	s.cron.AddFunc("0 * * * *", func() {
		log.Println("[Cron] Running invitation expiry sweep...")
		s.expireInvitations()
	})

	// Run every 30 minutes - mark inactive users as away
	s.cron.AddFunc("*/30 * * * *", func() {
		log.Println("[Cron] Running user status update...")
		s.updateInactiveUserStatus()
	})

	// Run every day at 9 AM - report stuck dividend transfers
	s.cron.AddFunc("0 9 * * *", func() {
		log.Println("[Cron] Running dividend transfer reconcile check...")
		s.reportStuckTransfers()
	})

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[Cron] Scheduler stopped")
}

// expireInvitations deletes pending invitations past their expiry
func (s *Scheduler) expireInvitations() {
	ctx := context.Background()

	count, err := s.invitationRepo.DeleteExpired(ctx)
	if err != nil {
		log.Printf("[Cron] Error deleting expired invitations: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[Cron] Deleted %d expired invitation(s)", count)
	}
}

// updateInactiveUserStatus marks users as away if inactive for 30+ minutes
func (s *Scheduler) updateInactiveUserStatus() {
	ctx := context.Background()

	if err := s.userRepo.UpdateStatusForInactive(ctx, 30*time.Minute); err != nil {
		log.Printf("[Cron] Error updating inactive user statuses: %v", err)
	}
}

// reportStuckTransfers logs dividend payments that have sat in pending for
// over 24 hours, so someone can chase the processor.
func (s *Scheduler) reportStuckTransfers() {
	ctx := context.Background()

	payments, err := s.dividendRepo.ListPendingPayments(ctx, 24*time.Hour)
	if err != nil {
		log.Printf("[Cron] Error listing pending dividend payments: %v", err)
		return
	}
	for _, p := range payments {
		transferID := ""
		if p.TransferID != nil {
			transferID = *p.TransferID
		}
		log.Printf("[Cron] ⚠️ Dividend payment %s (transfer %s) pending since %s",
			p.ExternalID, transferID, p.UpdatedAt.Format(time.RFC3339))
	}
}

// ManualTrigger allows manual triggering of sweeps (for testing)
func (s *Scheduler) ManualTrigger(checkType string) {
	switch checkType {
	case "invitations":
		s.expireInvitations()
	case "user_status":
		s.updateInactiveUserStatus()
	case "transfers":
		s.reportStuckTransfers()
	case "all":
		s.expireInvitations()
		s.updateInactiveUserStatus()
		s.reportStuckTransfers()
	}
}
