package service

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/capstack-hq/capstack-backend/internal/email"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/socket"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

// ============================================
// Dividend Service
// ============================================

type DividendService interface {
	UpdateTransferStatus(ctx context.Context, transferID, status string) error
}

type dividendService struct {
	dividendRepo repository.DividendRepository
	companyRepo  repository.CompanyRepository
	userRepo     repository.UserRepository
	emailSvc     *email.Service
	frontendURL  string
	broadcaster  *socket.Broadcaster
}

func NewDividendService(
	dividendRepo repository.DividendRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	emailSvc *email.Service,
	frontendURL string,
	broadcaster *socket.Broadcaster,
) DividendService {
	return &dividendService{
		dividendRepo: dividendRepo,
		companyRepo:  companyRepo,
		userRepo:     userRepo,
		emailSvc:     emailSvc,
		frontendURL:  frontendURL,
		broadcaster:  broadcaster,
	}
}

// UpdateTransferStatus applies a payment-processor callback. The payment row
// is locked for the duration so concurrent callbacks for the same transfer
// serialize; the attached dividends follow the payment's state.
func (s *dividendService) UpdateTransferStatus(ctx context.Context, transferID, status string) error {
	if !types.IsValidTransferStatus(status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var payment *repository.DividendPayment
	alreadyApplied := false

	err := s.dividendRepo.InTx(ctx, func(tx repository.DividendTx) error {
		p, err := tx.GetPaymentByTransferIDForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNotFound
		}
		if p.Status == status {
			// Processor retried a callback we already applied
			payment = p
			alreadyApplied = true
			return nil
		}

		if err := tx.UpdatePaymentStatus(ctx, p.ID, status); err != nil {
			return err
		}

		switch status {
		case types.PaymentProcessed:
			if err := tx.MarkDividendsPaid(ctx, p.ID); err != nil {
				return err
			}
		case types.PaymentFailed:
			if err := tx.ReopenDividends(ctx, p.ID); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyApplied {
		return nil
	}

	log.Printf("[Dividend] Transfer %s moved to status %s", transferID, status)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastDividendPaymentUpdated(payment.CompanyID, payment.ID, status)
	}
	if status == types.PaymentProcessed {
		s.notifyRecipients(ctx, payment)
	}
	return nil
}

// notifyRecipients tells each dividend holder once the transfer completes:
// a direct websocket notification plus an email when SMTP is configured.
// Best effort: failures are logged, the committed transition stands.
func (s *dividendService) notifyRecipients(ctx context.Context, payment *repository.DividendPayment) {
	if s.emailSvc == nil && s.broadcaster == nil {
		return
	}

	company, err := s.companyRepo.FindByID(ctx, payment.CompanyID)
	if err != nil || company == nil {
		log.Printf("[Dividend] ⚠️ Could not load company %s for payment notices: %v", payment.CompanyID, err)
		return
	}

	dividends, err := s.dividendRepo.ListDividendsByPayment(ctx, payment.ID)
	if err != nil {
		log.Printf("[Dividend] ⚠️ Could not list dividends for payment %s: %v", payment.ID, err)
		return
	}

	for _, d := range dividends {
		user, err := s.userRepo.FindByID(ctx, d.UserID)
		if err != nil || user == nil {
			continue
		}
		amount := decimal.NewFromInt(d.TotalAmountCents).Div(decimal.NewFromInt(100))

		if s.broadcaster != nil {
			s.broadcaster.SendNotification(user.ID, map[string]interface{}{
				"kind":      "dividend_paid",
				"companyId": company.ID,
				"amount":    amount.StringFixed(2),
			})
		}

		if s.emailSvc == nil {
			continue
		}
		err = s.emailSvc.SendDividendPayment(user.Email, email.DividendPaymentData{
			UserName:     user.Name,
			CompanyName:  company.Name,
			Amount:       "$" + amount.StringFixed(2),
			DashboardURL: fmt.Sprintf("%s/companies/%s/dividends", s.frontendURL, company.ExternalID),
		})
		if err != nil {
			log.Printf("[Dividend] ⚠️ Failed to send payment email to %s: %v", user.Email, err)
		}
	}
}
