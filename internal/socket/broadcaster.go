package socket

import (
	"fmt"
)

// Broadcaster provides high-level methods for broadcasting events
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func companyRoom(companyID string) string {
	return fmt.Sprintf("company:%s", companyID)
}

// IsOnline reports whether the user has an active websocket connection.
func (b *Broadcaster) IsOnline(userID string) bool {
	return b.hub.IsUserOnline(userID)
}

// ============================================
// Membership Broadcasting
// ============================================

// BroadcastMembersUpdated broadcasts the outcome of a bulk membership change
// to everyone watching the company, except the actor.
func (b *Broadcaster) BroadcastMembersUpdated(companyID string, result map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(companyRoom(companyID), MessageMembersUpdated, result, excludeUserID)
}

// BroadcastMemberRemoved broadcasts a single member removal
func (b *Broadcaster) BroadcastMemberRemoved(companyID, removedUserID, excludeUserID string) {
	b.hub.SendToRoom(companyRoom(companyID), MessageMemberRemoved, map[string]interface{}{
		"userId":    removedUserID,
		"companyId": companyID,
	}, excludeUserID)
}

// NotifyInvitationSent notifies the inviter that their invitation went out
func (b *Broadcaster) NotifyInvitationSent(userID, email, role string) {
	b.hub.SendToUser(userID, MessageInvitationSent, map[string]interface{}{
		"email": email,
		"role":  role,
	})
}

// ============================================
// Equity Broadcasting
// ============================================

// BroadcastGrantCancelled broadcasts a grant cancellation to the company room
// and notifies the grant holder directly.
func (b *Broadcaster) BroadcastGrantCancelled(companyID, grantID, holderUserID string, vestedShares int64) {
	payload := map[string]interface{}{
		"grantId":      grantID,
		"companyId":    companyID,
		"vestedShares": vestedShares,
	}
	b.hub.SendToRoom(companyRoom(companyID), MessageGrantCancelled, payload, "")
	if holderUserID != "" {
		b.hub.SendToUser(holderUserID, MessageGrantCancelled, payload)
	}
}

// BroadcastInvoiceEquityApplied broadcasts an invoice equity election
func (b *Broadcaster) BroadcastInvoiceEquityApplied(companyID, invoiceID string, shares int64, excludeUserID string) {
	b.hub.SendToRoom(companyRoom(companyID), MessageInvoiceEquityApplied, map[string]interface{}{
		"invoiceId": invoiceID,
		"shares":    shares,
	}, excludeUserID)
}

// ============================================
// Dividend Broadcasting
// ============================================

// BroadcastDividendPaymentUpdated broadcasts a transfer status change
func (b *Broadcaster) BroadcastDividendPaymentUpdated(companyID, paymentID, status string) {
	b.hub.SendToRoom(companyRoom(companyID), MessageDividendPaymentUpdated, map[string]interface{}{
		"paymentId": paymentID,
		"status":    status,
	}, "")
}

// ============================================
// Notification Broadcasting
// ============================================

// SendNotification sends a notification to a specific user
func (b *Broadcaster) SendNotification(userID string, notification map[string]interface{}) {
	b.hub.SendToUser(userID, MessageNotification, notification)
}
