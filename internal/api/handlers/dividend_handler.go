package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/service"
)

type DividendHandler struct {
	dividendService service.DividendService
}

// TransferWebhook receives payment-processor transfer status callbacks.
// Authenticated by shared secret middleware, not user JWT.
func (h *DividendHandler) TransferWebhook(c *gin.Context) {
	var req models.TransferUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.dividendService.UpdateTransferStatus(c.Request.Context(), req.TransferID, req.Status)
	if err != nil {
		log.Printf("[DividendHandler][TransferWebhook] transferID=%s status=%s error=%v",
			req.TransferID, req.Status, err)
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Transfer not found"})
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid transfer status"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update transfer"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transfer updated"})
}
