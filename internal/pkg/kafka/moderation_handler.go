package kafka

import (
	"context"
	log "log/slog"

	"Bazaar/internal/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// ModerationScheduler 由审核服务实现，返回错误时消息会被重试
type ModerationScheduler interface {
	ResumeModeration(ctx context.Context, postID string) error
}

// ModerationRequestsHandler 消费审核请求并放入本地审核队列
type ModerationRequestsHandler struct {
	scheduler ModerationScheduler
}

func NewModerationRequestsHandler(scheduler ModerationScheduler) *ModerationRequestsHandler {
	return &ModerationRequestsHandler{scheduler: scheduler}
}

func (s *ModerationRequestsHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("moderation request consumer setup")
	return nil
}

func (s *ModerationRequestsHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("moderation request consumer cleanup")
	return nil
}

func (s *ModerationRequestsHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, s.handle)
}

func (s *ModerationRequestsHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var req ModerationRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil || req.PostID == "" {
		// 格式错误的消息重试也无法成功，直接跳过
		log.WarnContext(ctx, "drop malformed moderation request", "offset", msg.Offset, "err", err)
		return nil
	}
	ctx = logger.WithTraceID(ctx, "kafka-"+req.PostID)
	return s.scheduler.ResumeModeration(ctx, req.PostID)
}
