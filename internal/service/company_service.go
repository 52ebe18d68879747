package service

import (
	"context"
	"log"

	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
)

// ============================================
// Company Service
// ============================================

type CompanyService interface {
	CreateCompany(ctx context.Context, ownerID string, req *models.CreateCompanyRequest) (*models.CompanyResponse, error)
	GetCompany(ctx context.Context, companyID, userID string) (*models.CompanyResponse, error)
	ListCompanies(ctx context.Context, userID string) ([]*models.CompanyResponse, error)
}

type companyService struct {
	companyRepo repository.CompanyRepository
	memberRepo  repository.MemberRepository
}

func NewCompanyService(companyRepo repository.CompanyRepository, memberRepo repository.MemberRepository) CompanyService {
	return &companyService{companyRepo: companyRepo, memberRepo: memberRepo}
}

// CreateCompany creates the company and seats the owner as its first admin.
func (s *companyService) CreateCompany(ctx context.Context, ownerID string, req *models.CreateCompanyRequest) (*models.CompanyResponse, error) {
	company := &repository.Company{
		Name:          req.Name,
		OwnerID:       ownerID,
		EquityEnabled: req.EquityEnabled,
	}
	if req.SharePriceUSD != "" {
		company.SharePriceUSD = &req.SharePriceUSD
	}

	if err := s.companyRepo.Create(ctx, company); err != nil {
		return nil, err
	}

	admin := &repository.CompanyAdministrator{CompanyID: company.ID, UserID: ownerID}
	if err := s.memberRepo.AddAdmin(ctx, admin); err != nil {
		return nil, err
	}

	log.Printf("[Company] ✅ Company created: %s (%s) by %s", company.Name, company.ExternalID, ownerID)
	return toCompanyResponse(company), nil
}

func (s *companyService) GetCompany(ctx context.Context, companyID, userID string) (*models.CompanyResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrNotFound
	}

	companies, err := s.companyRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range companies {
		if c.ID == companyID {
			return toCompanyResponse(company), nil
		}
	}
	return nil, ErrForbidden
}

func (s *companyService) ListCompanies(ctx context.Context, userID string) ([]*models.CompanyResponse, error) {
	companies, err := s.companyRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	responses := make([]*models.CompanyResponse, 0, len(companies))
	for _, c := range companies {
		responses = append(responses, toCompanyResponse(c))
	}
	return responses, nil
}

func toCompanyResponse(c *repository.Company) *models.CompanyResponse {
	return &models.CompanyResponse{
		ID:            c.ID,
		ExternalID:    c.ExternalID,
		Name:          c.Name,
		OwnerID:       c.OwnerID,
		SharePriceUSD: c.SharePriceUSD,
		EquityEnabled: c.EquityEnabled,
		CreatedAt:     c.CreatedAt,
	}
}
