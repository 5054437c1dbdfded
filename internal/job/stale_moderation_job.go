package job

import (
	"context"
	log "log/slog"
	"time"

	"Bazaar/internal/pkg/logger"
)

// StaleSweeper 将超时仍处于 PROCESSING 的帖子置为 FAILED，返回处理条数
type StaleSweeper interface {
	FailStaleModerations(ctx context.Context, before time.Time) (int, error)
}

// StaleModerationJob 进程重启或任务丢失会让帖子停留在 PROCESSING，定时兜底
type StaleModerationJob struct {
	sweeper    StaleSweeper
	staleAfter time.Duration
	timeout    time.Duration
	now        func() time.Time
}

func NewStaleModerationJob(sweeper StaleSweeper, staleAfter time.Duration) *StaleModerationJob {
	return &StaleModerationJob{
		sweeper:    sweeper,
		staleAfter: staleAfter,
		timeout:    time.Minute,
		now:        time.Now,
	}
}

func (s *StaleModerationJob) Run() {
	ctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), "cron-stale-moderation"), s.timeout)
	defer cancel()

	before := s.now().Add(-s.staleAfter)
	count, err := s.sweeper.FailStaleModerations(ctx, before)
	if err != nil {
		log.ErrorContext(ctx, "stale moderation job failed", "err", err)
		return
	}
	if count > 0 {
		log.InfoContext(ctx, "stale moderation job finished", "failed_count", count, "before", before)
	}
}
