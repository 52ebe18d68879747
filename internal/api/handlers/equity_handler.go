package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capstack-hq/capstack-backend/internal/api/middleware"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/service"
)

type EquityHandler struct {
	equityService service.EquityService
}

// CalculateInvoiceEquity previews an equity election without persisting it
func (h *EquityHandler) CalculateInvoiceEquity(c *gin.Context) {
	companyID := c.Param("id")
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	var req models.CalculateInvoiceEquityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	equity, err := h.equityService.CalculateInvoiceEquity(c.Request.Context(), companyID, req.TotalAmountCents, req.EquityPercentage)
	if err != nil {
		h.renderEquityError(c, err)
		return
	}

	c.JSON(http.StatusOK, equity)
}

// ApplyInvoiceEquity persists an equity election onto an invoice
func (h *EquityHandler) ApplyInvoiceEquity(c *gin.Context) {
	companyID := c.Param("id")
	invoiceID := c.Param("invoiceId")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CalculateInvoiceEquityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	equity, err := h.equityService.ApplyInvoiceEquity(c.Request.Context(), companyID, invoiceID, req.EquityPercentage, userID)
	if err != nil {
		h.renderEquityError(c, err)
		return
	}

	c.JSON(http.StatusOK, equity)
}

// CancelGrant cancels an active equity grant
func (h *EquityHandler) CancelGrant(c *gin.Context) {
	companyID := c.Param("id")
	grantID := c.Param("grantId")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req models.CancelGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.equityService.CancelGrant(c.Request.Context(), companyID, grantID, userID, req.Reason); err != nil {
		switch err {
		case service.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Grant not found"})
		case service.ErrGrantNotActive:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Grant is not active"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel grant"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Grant cancelled"})
}

func (h *EquityHandler) renderEquityError(c *gin.Context, err error) {
	switch err {
	case service.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case service.ErrEquityDisabled:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Equity is not enabled for this company"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate equity"})
	}
}
