package handlers

import (
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/repository"
	"github.com/capstack-hq/capstack-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth     *AuthHandler
	Company  *CompanyHandler
	Member   *MemberHandler
	Equity   *EquityHandler
	Dividend *DividendHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:     &AuthHandler{authService: services.Auth},
		Company:  &CompanyHandler{companyService: services.Company},
		Member:   &MemberHandler{memberService: services.Member, bulkMemberService: services.BulkMember},
		Equity:   &EquityHandler{equityService: services.Equity},
		Dividend: &DividendHandler{dividendService: services.Dividend},
	}
}

// ============================================
// Response Mappers
// ============================================

func toUserResponse(u *repository.User) models.UserResponse {
	return models.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}
