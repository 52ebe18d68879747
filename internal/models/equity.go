package models

// ============================================
// Equity Models
// ============================================

type CalculateInvoiceEquityRequest struct {
	TotalAmountCents int64 `json:"total_amount_cents" binding:"required,min=0"`
	EquityPercentage int   `json:"equity_percentage" binding:"min=0,max=100"`
}

// InvoiceEquity is the calculator output, also persisted onto the invoice.
type InvoiceEquity struct {
	AmountCents        int64  `json:"amount_in_cents"`
	Shares             int64  `json:"number_of_shares"`
	SelectedPercentage int    `json:"selected_percentage"`
	SharePriceUSD      string `json:"share_price_usd,omitempty"`
}

type CancelGrantRequest struct {
	Reason string `json:"reason" binding:"required"`
}
