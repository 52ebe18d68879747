package models

import "time"

// ============================================
// Member Management Models
// ============================================

// BulkMemberEntry is one raw (email, role) row from the bulk form.
// Validation happens in the service so errors can be aggregated per index;
// no binding tags on purpose.
type BulkMemberEntry struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type BulkMembersRequest struct {
	Members []BulkMemberEntry `json:"members"`
}

// BulkMemberError carries either an input-validation error (Index set)
// or an execution error (Email set).
type BulkMemberError struct {
	Index   *int   `json:"index,omitempty"`
	Email   string `json:"email,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BulkMemberResult struct {
	Success        bool              `json:"success"`
	InvitedCount   int               `json:"invited_count"`
	UpdatedCount   int               `json:"updated_count"`
	TotalProcessed int               `json:"total_processed"`
	Errors         []BulkMemberError `json:"errors,omitempty"`
}

type RemoveMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

type MemberResponse struct {
	ExternalID string    `json:"externalId"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Online     bool      `json:"online"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type InvitationResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CompanyID string    `json:"companyId"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
