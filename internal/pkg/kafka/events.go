package kafka

import (
	"time"

	"Bazaar/internal/model"
)

// ModerationEvent 审核结论事件，帖子进入终态时发布
type ModerationEvent struct {
	PostID     string           `json:"post_id"`
	OwnerID    uint64           `json:"owner_id"`
	Category   string           `json:"category"`
	Status     model.PostStatus `json:"status"`
	Action     string           `json:"action,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Confidence float64          `json:"confidence"`
	Issues     []string         `json:"issues"`
	Error      string           `json:"error,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// ModerationRequest 跨实例派发的完整审核请求
type ModerationRequest struct {
	PostID      string    `json:"post_id"`
	RequestedAt time.Time `json:"requested_at"`
}
