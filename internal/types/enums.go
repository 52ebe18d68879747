package types

import "strings"

// Company member roles
const (
	RoleAdmin  = "admin"
	RoleLawyer = "lawyer"
)

// Member record types (matches the role table a row lives in)
const (
	MemberTypeAdministrator = "CompanyAdministrator"
	MemberTypeLawyer        = "CompanyLawyer"
)

// Invitation message kinds
const (
	InvitationKindNewUser      = "new_user_invitation"
	InvitationKindExistingUser = "existing_user_invitation"
)

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationExpired  = "expired"
)

// Equity grant statuses
const (
	GrantActive    = "active"
	GrantExercised = "exercised"
	GrantCancelled = "cancelled"
)

// Dividend payment statuses
const (
	PaymentInitial   = "initial"
	PaymentPending   = "pending"
	PaymentProcessed = "processed"
	PaymentFailed    = "failed"
)

// Dividend statuses
const (
	DividendIssued = "issued"
	DividendPaid   = "paid"
)

// User Status values
const (
	UserOnline  = "online"
	UserOffline = "offline"
	UserAway    = "away"
	UserInvited = "invited"
)

// Valid role values for validation
var ValidMemberRoles = []string{RoleAdmin, RoleLawyer}

var ValidTransferStatuses = []string{PaymentPending, PaymentProcessed, PaymentFailed}

// Helper functions for validation
func IsValidMemberRole(role string) bool {
	for _, r := range ValidMemberRoles {
		if r == role {
			return true
		}
	}
	return false
}

func IsValidTransferStatus(status string) bool {
	for _, s := range ValidTransferStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// MemberTypeForRole maps a role to the record type of its role table.
func MemberTypeForRole(role string) string {
	switch strings.TrimSpace(role) {
	case RoleAdmin:
		return MemberTypeAdministrator
	case RoleLawyer:
		return MemberTypeLawyer
	default:
		return ""
	}
}
