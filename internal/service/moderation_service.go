package service

import (
	"context"
	"fmt"
	log "log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"Bazaar/internal/model"
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/kafka"
	"Bazaar/internal/pkg/logger"
	"Bazaar/internal/pkg/metrics"
	"Bazaar/internal/pkg/moderation"
	"Bazaar/internal/pkg/worker"
	"Bazaar/internal/repository"

	"github.com/pkg/errors"
)

// staleBatchSize 每次兜底任务最多处理的帖子数
const staleBatchSize = 200

// ImageStore 帖子图片存储
type ImageStore interface {
	Save(ctx context.Context, postID string, data []byte) (*model.PostImage, error)
	Delete(ctx context.Context, images []model.PostImage)
	LoadOriginals(ctx context.Context, images []model.PostImage) ([][]byte, error)
}

// Locker 跨实例互斥，token 用于安全释放
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// EventPublisher 审核结论事件与跨实例审核请求
type EventPublisher interface {
	PublishDecision(ctx context.Context, evt kafka.ModerationEvent) error
	PublishRequest(ctx context.Context, req kafka.ModerationRequest) error
}

// TaskSubmitter 有界任务队列
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type ModerationService interface {
	CheckSubmission(title, description string, category model.PostCategory) moderation.TextSummary
	GateThreshold() float64
	ModeratePost(ctx context.Context, post *model.Post, images [][]byte) moderation.Decision
	ScheduleFullModeration(ctx context.Context, postID string, snapshot *model.Post, images [][]byte) error
	ResumeModeration(ctx context.Context, postID string) error
	FailModeration(ctx context.Context, post *model.Post, reason string) (bool, error)
	FailStaleModerations(ctx context.Context, before time.Time) (int, error)
}

// ModerationOptions 可选依赖，nil 表示不启用
type ModerationOptions struct {
	GateThreshold  float64
	Locker         Locker
	LockTTL        time.Duration
	Publisher      EventPublisher
	RemoteDispatch bool
	Images         ImageStore
}

type moderationServiceImpl struct {
	postRepo repository.PostRepo
	text     *moderation.TextEngine
	image    *moderation.ImageEngine
	pool     TaskSubmitter
	opts     ModerationOptions
}

func NewModerationService(
	postRepo repository.PostRepo,
	text *moderation.TextEngine,
	image *moderation.ImageEngine,
	pool TaskSubmitter,
	opts ModerationOptions,
) ModerationService {
	if opts.GateThreshold <= 0 {
		opts.GateThreshold = 0.85
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &moderationServiceImpl{
		postRepo: postRepo,
		text:     text,
		image:    image,
		pool:     pool,
		opts:     opts,
	}
}

// MapCategory 帖子分类到引擎分类，未知分类按 general 处理
func MapCategory(c model.PostCategory) moderation.Category {
	switch c {
	case model.PostCategoryRoommate:
		return moderation.CategoryRoommate
	case model.PostCategorySell:
		return moderation.CategorySell
	case model.PostCategoryCarpool:
		return moderation.CategoryCarpool
	}
	return moderation.CategoryGeneral
}

// BuildTextContext 从帖子提取分类检查需要的上下文
func BuildTextContext(post *model.Post) *moderation.TextContext {
	location := post.Community
	if location == "" {
		location = post.FromLocation
	}
	tc := &moderation.TextContext{
		Price:    post.Price,
		Rent:     post.Rent,
		Location: location,
	}
	if post.OwnerID != 0 {
		tc.Owner = strconv.FormatUint(post.OwnerID, 10)
	}
	return tc
}

// CheckSubmission 入库前的快速检查，只跑文本引擎
func (s *moderationServiceImpl) CheckSubmission(title, description string, category model.PostCategory) moderation.TextSummary {
	c := MapCategory(category)
	return moderation.MergeText(
		s.text.Evaluate(title, c, nil),
		s.text.Evaluate(description, c, nil),
	)
}

func (s *moderationServiceImpl) GateThreshold() float64 {
	return s.opts.GateThreshold
}

// ModeratePost 完整审核，不读写存储
func (s *moderationServiceImpl) ModeratePost(ctx context.Context, post *model.Post, images [][]byte) moderation.Decision {
	c := MapCategory(post.Category)
	tc := BuildTextContext(post)

	text := moderation.MergeText(
		s.text.Evaluate(post.Title, c, tc),
		s.text.Evaluate(post.Description, c, tc),
	)
	img := s.image.Evaluate(ctx, images, c)
	return moderation.Decide(text, &img)
}

// ScheduleFullModeration 投递审核任务后立即返回，队列满时返回 worker.ErrQueueFull
func (s *moderationServiceImpl) ScheduleFullModeration(ctx context.Context, postID string, snapshot *model.Post, images [][]byte) error {
	if s.opts.RemoteDispatch && s.opts.Publisher != nil && s.opts.Images != nil {
		err := s.opts.Publisher.PublishRequest(ctx, kafka.ModerationRequest{PostID: postID, RequestedAt: time.Now().UTC()})
		if err == nil {
			return nil
		}
		log.WarnContext(ctx, "dispatch moderation request failed, falling back to local queue", "post_id", postID, "err", err)
	}
	return s.submit(ctx, postID, snapshot, images)
}

func (s *moderationServiceImpl) submit(ctx context.Context, postID string, snapshot *model.Post, images [][]byte) error {
	taskCtx := logger.DetachTrace(ctx)
	err := s.pool.Submit(func(workerCtx context.Context) {
		if id := logger.TraceID(taskCtx); id != "" {
			workerCtx = logger.WithTraceID(workerCtx, id)
		}
		s.runModeration(workerCtx, postID, snapshot, images)
	})
	if errors.Is(err, worker.ErrQueueFull) {
		metrics.QueueRejections.Inc()
	}
	return err
}

// ResumeModeration 由审核请求消费者调用，从存储恢复帖子与原图后投递到本地队列
func (s *moderationServiceImpl) ResumeModeration(ctx context.Context, postID string) error {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return errors.Wrap(err, "load post")
	}
	if post == nil || post.Status != model.PostStatusProcessing {
		log.InfoContext(ctx, "skip moderation request, post not processing", "post_id", postID)
		return nil
	}

	var images [][]byte
	if len(post.Images) > 0 {
		if s.opts.Images == nil {
			_, err = s.FailModeration(ctx, post, "image store unavailable")
			return err
		}
		images, err = s.opts.Images.LoadOriginals(ctx, post.Images)
		if err != nil {
			_, err = s.FailModeration(ctx, post, errors.Wrap(err, "load images").Error())
			return err
		}
	}
	return s.submit(ctx, postID, post, images)
}

func (s *moderationServiceImpl) runModeration(ctx context.Context, postID string, snapshot *model.Post, images [][]byte) {
	start := time.Now()
	category := string(MapCategory(snapshot.Category))

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "moderation panic", "post_id", postID, "panic", r, "stack", string(debug.Stack()))
			metrics.ModerationDecisions.WithLabelValues(category, "ERROR").Inc()
			_, _ = s.FailModeration(ctx, snapshot, fmt.Sprintf("moderation panic: %v", r))
		}
	}()

	if s.opts.Locker != nil {
		key := consts.ModerationLockKey + postID
		token, ok, err := s.opts.Locker.TryLock(ctx, key, s.opts.LockTTL)
		switch {
		case err != nil:
			log.WarnContext(ctx, "moderation lock unavailable, continuing without lock", "post_id", postID, "err", err)
		case !ok:
			log.InfoContext(ctx, "moderation already in flight", "post_id", postID)
			return
		default:
			defer func() {
				if err := s.opts.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.WarnContext(ctx, "release moderation lock failed", "post_id", postID, "err", err)
				}
			}()
		}
	}

	// 排队期间帖子可能已被删除、关闭或被兜底任务置为 FAILED
	current, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		log.ErrorContext(ctx, "reload post before moderation failed", "post_id", postID, "err", err)
		metrics.ModerationDecisions.WithLabelValues(category, "ERROR").Inc()
		_, _ = s.FailModeration(ctx, snapshot, errors.Wrap(err, "reload post").Error())
		return
	}
	if current == nil || current.Status != model.PostStatusProcessing {
		log.InfoContext(ctx, "skip moderation, post not processing", "post_id", postID)
		return
	}

	decision := s.ModeratePost(ctx, snapshot, images)
	applied, err := s.commitDecision(ctx, snapshot, decision)
	if err != nil {
		log.ErrorContext(ctx, "commit moderation decision failed", "post_id", postID, "err", err)
		metrics.ModerationDecisions.WithLabelValues(category, "ERROR").Inc()
		_, _ = s.FailModeration(ctx, snapshot, err.Error())
		return
	}
	if !applied {
		return
	}

	metrics.ModerationDecisions.WithLabelValues(category, string(decision.Action)).Inc()
	metrics.ModerationDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())
	log.InfoContext(ctx, "moderation finished",
		"post_id", postID,
		"action", decision.Action,
		"confidence", decision.Confidence,
		"issues", len(decision.Issues),
		"latency", time.Since(start))
}

// commitDecision 唯一一次终态写入，帖子已离开 PROCESSING 时不覆盖，返回是否写入
func (s *moderationServiceImpl) commitDecision(ctx context.Context, post *model.Post, d moderation.Decision) (bool, error) {
	now := time.Now().UTC()
	analysis := &model.ModerationAnalysis{
		Text:       d.Text,
		Image:      d.Image,
		Confidence: d.Confidence,
	}

	var status model.PostStatus
	fields := map[string]any{}
	if d.Action == moderation.ActionApprove {
		status = model.PostStatusPublished
		analysis.CheckedAt = &now
		fields["moderation_passed_at"] = now
	} else {
		status = model.PostStatusFailed
		analysis.Issues = d.Issues
		analysis.DetectedAt = &now
		fields["moderation_reason"] = d.Reason
		fields["moderation_completed_at"] = now
	}
	fields["status"] = status
	fields["moderation_analysis"] = analysis

	applied, err := s.postRepo.UpdatePostFields(ctx, post.ID, fields)
	if err != nil {
		return false, errors.Wrap(err, "update post")
	}
	if !applied {
		log.InfoContext(ctx, "post left PROCESSING before moderation finished", "post_id", post.ID)
		return false, nil
	}

	s.publish(ctx, kafka.ModerationEvent{
		PostID:     post.ID,
		OwnerID:    post.OwnerID,
		Category:   string(post.Category),
		Status:     status,
		Action:     string(d.Action),
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Issues:     d.Issues,
		OccurredAt: now,
	})
	return true, nil
}

// FailModeration 将仍在审核中的帖子置为 FAILED，返回是否写入
func (s *moderationServiceImpl) FailModeration(ctx context.Context, post *model.Post, reason string) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	applied, err := s.postRepo.UpdatePostFields(ctx, post.ID, map[string]any{
		"status":           model.PostStatusFailed,
		"moderation_error": reason,
		"failed_at":        now,
	})
	if err != nil {
		log.ErrorContext(ctx, "mark post failed error", "post_id", post.ID, "err", err)
		return false, errors.Wrap(err, "mark post failed")
	}
	if applied {
		s.publish(ctx, kafka.ModerationEvent{
			PostID:     post.ID,
			OwnerID:    post.OwnerID,
			Category:   string(post.Category),
			Status:     model.PostStatusFailed,
			Issues:     []string{},
			Error:      reason,
			OccurredAt: now,
		})
	}
	return applied, nil
}

// FailStaleModerations 超时仍在 PROCESSING 的帖子统一置为 FAILED
func (s *moderationServiceImpl) FailStaleModerations(ctx context.Context, before time.Time) (int, error) {
	posts, err := s.postRepo.ListStaleProcessing(ctx, before, staleBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "list stale posts")
	}
	count := 0
	for _, post := range posts {
		applied, err := s.FailModeration(ctx, post, consts.ModerationTimeoutError)
		if err != nil {
			return count, err
		}
		if applied {
			count++
		}
	}
	metrics.StaleModerations.Add(float64(count))
	return count, nil
}

func (s *moderationServiceImpl) publish(ctx context.Context, evt kafka.ModerationEvent) {
	if s.opts.Publisher == nil {
		return
	}
	if evt.Issues == nil {
		evt.Issues = []string{}
	}
	if err := s.opts.Publisher.PublishDecision(ctx, evt); err != nil {
		log.WarnContext(ctx, "publish moderation event failed", "post_id", evt.PostID, "err", err)
	}
}
