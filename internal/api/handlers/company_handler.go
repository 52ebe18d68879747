package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capstack-hq/capstack-backend/internal/api/middleware"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/service"
)

type CompanyHandler struct {
	companyService service.CompanyService
}

// CreateCompany creates a company owned by the caller
func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := h.companyService.CreateCompany(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create company"})
		return
	}

	c.JSON(http.StatusCreated, company)
}

// GetCompany returns one company the caller belongs to
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}
	companyID := c.Param("id")

	company, err := h.companyService.GetCompany(c.Request.Context(), companyID, userID)
	if err != nil {
		if err == service.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			return
		}
		if err == service.ErrForbidden {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this company"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch company"})
		return
	}

	c.JSON(http.StatusOK, company)
}

// ListCompanies returns the caller's companies
func (h *CompanyHandler) ListCompanies(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	companies, err := h.companyService.ListCompanies(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch companies"})
		return
	}

	c.JSON(http.StatusOK, companies)
}
