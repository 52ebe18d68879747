package models

import "time"

// ============================================
// Company Models
// ============================================

type CreateCompanyRequest struct {
	Name          string `json:"name" binding:"required"`
	SharePriceUSD string `json:"sharePriceUsd,omitempty"`
	EquityEnabled bool   `json:"equityEnabled"`
}

type CompanyResponse struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"externalId"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"ownerId"`
	SharePriceUSD *string   `json:"sharePriceUsd,omitempty"`
	EquityEnabled bool      `json:"equityEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
}
