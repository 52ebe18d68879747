package service

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/capstack-hq/capstack-backend/internal/email"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/socket"
	"github.com/capstack-hq/capstack-backend/internal/types"
)

// ============================================
// Equity Service
// ============================================

type EquityService interface {
	CalculateInvoiceEquity(ctx context.Context, companyID string, totalAmountCents int64, percentage int) (*models.InvoiceEquity, error)
	ApplyInvoiceEquity(ctx context.Context, companyID, invoiceID string, percentage int, actingUserID string) (*models.InvoiceEquity, error)
	CancelGrant(ctx context.Context, companyID, grantID, actingUserID, reason string) error
}

type equityService struct {
	equityRepo  repository.EquityRepository
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	emailSvc    *email.Service
	broadcaster *socket.Broadcaster
}

func NewEquityService(
	equityRepo repository.EquityRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	emailSvc *email.Service,
	broadcaster *socket.Broadcaster,
) EquityService {
	return &equityService{
		equityRepo:  equityRepo,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		emailSvc:    emailSvc,
		broadcaster: broadcaster,
	}
}

// CalculateInvoiceEquity computes the equity election for an invoice:
// the elected cents are percentage of the total, rounded half away from
// zero, and shares follow from the company's share price the same way.
// Pure arithmetic aside from the share-price lookup.
func (s *equityService) CalculateInvoiceEquity(ctx context.Context, companyID string, totalAmountCents int64, percentage int) (*models.InvoiceEquity, error) {
	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidInput)
	}

	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrNotFound
	}
	if !company.EquityEnabled || company.SharePriceUSD == nil {
		return nil, ErrEquityDisabled
	}

	sharePrice, err := decimal.NewFromString(*company.SharePriceUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid share price for company %s: %w", companyID, err)
	}
	if sharePrice.IsZero() {
		return nil, ErrEquityDisabled
	}

	return calculateEquity(totalAmountCents, percentage, sharePrice), nil
}

func calculateEquity(totalAmountCents int64, percentage int, sharePrice decimal.Decimal) *models.InvoiceEquity {
	hundred := decimal.NewFromInt(100)

	equityCents := decimal.NewFromInt(totalAmountCents).
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(hundred).
		Round(0)

	equityDollars := equityCents.Div(hundred)
	shares := equityDollars.Div(sharePrice).Round(0)

	return &models.InvoiceEquity{
		AmountCents:        equityCents.IntPart(),
		Shares:             shares.IntPart(),
		SelectedPercentage: percentage,
		SharePriceUSD:      sharePrice.String(),
	}
}

// ApplyInvoiceEquity computes and persists the equity election onto the
// invoice.
func (s *equityService) ApplyInvoiceEquity(ctx context.Context, companyID, invoiceID string, percentage int, actingUserID string) (*models.InvoiceEquity, error) {
	invoice, err := s.equityRepo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil || invoice.CompanyID != companyID {
		return nil, ErrNotFound
	}

	equity, err := s.CalculateInvoiceEquity(ctx, companyID, invoice.TotalAmountCents, percentage)
	if err != nil {
		return nil, err
	}

	if err := s.equityRepo.UpdateInvoiceEquity(ctx, invoiceID, percentage, equity.AmountCents, equity.Shares); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastInvoiceEquityApplied(companyID, invoiceID, equity.Shares, actingUserID)
	}
	return equity, nil
}

// CancelGrant cancels an active grant under a row lock: the grant flips to
// cancelled, its unvested shares are forfeited, and the same amount flows
// back to the option pool in the one transaction.
func (s *equityService) CancelGrant(ctx context.Context, companyID, grantID, actingUserID, reason string) error {
	var cancelled *repository.EquityGrant

	err := s.equityRepo.InTx(ctx, func(tx repository.EquityTx) error {
		grant, err := tx.GetGrantForUpdate(ctx, grantID)
		if err != nil {
			return err
		}
		if grant == nil || grant.CompanyID != companyID {
			return ErrNotFound
		}
		if grant.Status != types.GrantActive {
			return ErrGrantNotActive
		}

		forfeited := grant.ForfeitedShares + grant.UnvestedShares
		if err := tx.UpdateGrantCancelled(ctx, grantID, reason, forfeited); err != nil {
			return err
		}
		if grant.OptionPoolID != nil && grant.UnvestedShares > 0 {
			if err := tx.AddPoolAvailableShares(ctx, *grant.OptionPoolID, grant.UnvestedShares); err != nil {
				return err
			}
		}
		cancelled = grant
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[Equity] Grant %s cancelled by %s (reason: %s)", grantID, actingUserID, reason)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGrantCancelled(companyID, grantID, cancelled.UserID, cancelled.VestedShares)
	}

	if s.emailSvc != nil {
		holder, err := s.userRepo.FindByID(ctx, cancelled.UserID)
		if err != nil || holder == nil {
			return nil
		}
		company, err := s.companyRepo.FindByID(ctx, companyID)
		if err != nil || company == nil {
			return nil
		}
		if err := s.emailSvc.SendGrantCancelled(holder.Email, email.GrantCancelledData{
			UserName:     holder.Name,
			CompanyName:  company.Name,
			VestedShares: cancelled.VestedShares,
			Reason:       reason,
		}); err != nil {
			log.Printf("[Equity] ⚠️ Failed to send grant cancellation email: %v", err)
		}
	}
	return nil
}
