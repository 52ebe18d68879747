package models

// ============================================
// Dividend Models
// ============================================

// TransferUpdateRequest is the payload the payment processor posts back
// when a dividend transfer changes state.
type TransferUpdateRequest struct {
	TransferID string `json:"transfer_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
}
