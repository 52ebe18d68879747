package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/capstack-hq/capstack-backend/internal/db"
)

// InvitationQueueName is the Redis list the invitation worker consumes.
const InvitationQueueName = "invitations"

// InvitationMessage is one queued invitation. Two kinds share the struct:
// new_user_invitation carries email/role/company_id/current_user_id, while
// existing_user_invitation additionally identifies the created role row.
type InvitationMessage struct {
	Type string `json:"type"`

	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`

	// Set on new_user_invitation only.
	CurrentUserID string `json:"current_user_id,omitempty"`

	// Set on existing_user_invitation only.
	CompanyMemberID   string `json:"company_member_id,omitempty"`
	CompanyMemberType string `json:"company_member_type,omitempty"`
	UserID            string `json:"user_id,omitempty"`
}

// Queue carries invitation batches from the membership service to the
// background worker. Enqueue happens strictly after the reconciliation
// transaction commits.
type Queue interface {
	Enqueue(ctx context.Context, messages []InvitationMessage) error
}

type RedisQueue struct {
	redis *db.RedisDB
}

func NewRedisQueue(redis *db.RedisDB) *RedisQueue {
	return &RedisQueue{redis: redis}
}

func (q *RedisQueue) Enqueue(ctx context.Context, messages []InvitationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return q.redis.PushJob(ctx, InvitationQueueName, messages)
}

// Dequeue blocks up to timeout for the next batch. Returns nil when the
// queue stayed empty.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]InvitationMessage, error) {
	data, err := q.redis.PopJob(ctx, InvitationQueueName, timeout)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var messages []InvitationMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
