package service

import (
	"context"
	log "log/slog"
	"strings"

	"Bazaar/internal/api/dto"
	"Bazaar/internal/model"
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/metrics"
	"Bazaar/internal/pkg/util"
	"Bazaar/internal/pkg/worker"
	"Bazaar/internal/repository"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

type PostService interface {
	CreatePost(ctx context.Context, userID uint64, req *dto.CreatePostDTO) (*dto.CreatePostResultDTO, error)
	CheckSpam(ctx context.Context, req *dto.CheckSpamDTO) *dto.CheckSpamResultDTO
	GetPost(ctx context.Context, viewerID uint64, postID string) (*dto.PostDTO, error)
	GetModerationStatus(ctx context.Context, userID uint64, postID string) (*dto.ModerationStatusDTO, error)
	ListFeed(ctx context.Context, page, pageSize int) (*dto.PostListDTO, error)
	ListMyPosts(ctx context.Context, userID uint64, query *dto.MyPostsQuery) (*dto.PostListDTO, error)
	UpdatePostStatus(ctx context.Context, userID uint64, postID string, status model.PostStatus) error
	DeletePost(ctx context.Context, userID uint64, postID string) error
}

type postServiceImpl struct {
	postRepo   repository.PostRepo
	moderation ModerationService
	images     ImageStore
}

func NewPostService(postRepo repository.PostRepo, moderation ModerationService, images ImageStore) PostService {
	return &postServiceImpl{
		postRepo:   postRepo,
		moderation: moderation,
		images:     images,
	}
}

// CreatePost 校验、预检、入库、保存图片、投递审核，返回时帖子处于 PROCESSING
func (s *postServiceImpl) CreatePost(ctx context.Context, userID uint64, req *dto.CreatePostDTO) (*dto.CreatePostResultDTO, error) {
	post := newPostFromDTO(userID, req)
	if err := validateCategoryFields(post); err != nil {
		return nil, err
	}
	if len(req.Images) > consts.MaxImagesPerPost {
		return nil, ErrTooManyImages
	}
	images, err := util.DecodeImagePayloads(req.Images)
	if err != nil {
		return nil, ErrImageInvalid
	}

	summary := s.moderation.CheckSubmission(post.Title, post.Description, post.Category)
	if summary.Confidence > s.moderation.GateThreshold() {
		metrics.GateRejections.WithLabelValues(string(MapCategory(post.Category))).Inc()
		log.InfoContext(ctx, "submission rejected by gate", "owner_id", userID, "confidence", summary.Confidence, "issues", summary.Issues)
		return nil, &GateRejection{Summary: summary}
	}

	if err = s.postRepo.InsertPost(ctx, post); err != nil {
		return nil, errors.Wrap(err, "insert post")
	}

	if len(images) > 0 {
		if err = s.saveImages(ctx, post, images); err != nil {
			return nil, err
		}
	}

	err = s.moderation.ScheduleFullModeration(ctx, post.ID, post, images)
	if err != nil {
		log.WarnContext(ctx, "schedule moderation failed", "post_id", post.ID, "err", err)
		reason := err.Error()
		if errors.Is(err, worker.ErrQueueFull) {
			reason = consts.ModerationQueueFullError
		}
		_, _ = s.moderation.FailModeration(ctx, post, reason)
		return nil, ErrModerationBusy
	}

	return &dto.CreatePostResultDTO{
		PostID:  post.ID,
		Status:  string(model.PostStatusProcessing),
		Message: "Post submitted and is under review",
	}, nil
}

// saveImages 保存全部图片，失败时删除已保存图片与帖子
func (s *postServiceImpl) saveImages(ctx context.Context, post *model.Post, images [][]byte) error {
	saved := make(model.ImageList, 0, len(images))
	rollback := func() {
		cleanupCtx := context.WithoutCancel(ctx)
		s.images.Delete(cleanupCtx, saved)
		if err := s.postRepo.DeletePost(cleanupCtx, post.ID); err != nil {
			log.ErrorContext(ctx, "rollback post failed", "post_id", post.ID, "err", err)
		}
	}

	for _, data := range images {
		img, err := s.images.Save(ctx, post.ID, data)
		if err != nil {
			rollback()
			return errors.WithMessage(ErrImageProcess, err.Error())
		}
		saved = append(saved, *img)
	}

	if _, err := s.postRepo.UpdatePostFields(ctx, post.ID, map[string]any{"images": saved}); err != nil {
		rollback()
		return errors.Wrap(err, "attach images")
	}
	post.Images = saved
	return nil
}

func newPostFromDTO(userID uint64, req *dto.CreatePostDTO) *model.Post {
	post := &model.Post{
		ID:               uuid.NewString(),
		OwnerID:          userID,
		Category:         model.PostCategory(req.Category),
		Community:        req.Community,
		Rent:             req.Rent,
		StartDate:        req.StartDate,
		GenderPreference: strings.ToUpper(req.GenderPreference),
		Preferences:      req.Preferences,
		Price:            req.Price,
		Item:             req.Item,
		SubCategory:      req.SubCategory,
		FromLocation:     req.FromLocation,
		ToLocation:       req.ToLocation,
		DepartureTime:    req.DepartureTime,
		SeatsAvailable:   req.SeatsAvailable,
		Images:           model.ImageList{},
		Status:           model.PostStatusProcessing,
	}
	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Description != nil {
		post.Description = *req.Description
	}

	switch post.Category {
	case model.PostCategoryRoommate:
		if post.GenderPreference == "" {
			post.GenderPreference = consts.DefaultGenderPreference
		}
	case model.PostCategorySell:
		if post.SubCategory == "" {
			post.SubCategory = consts.DefaultSubCategory
		}
	case model.PostCategoryCarpool:
		if post.SeatsAvailable == 0 {
			post.SeatsAvailable = consts.DefaultSeatsAvailable
		}
	}
	return post
}

// validateCategoryFields 分类必填字段
func validateCategoryFields(post *model.Post) error {
	var missing string
	switch post.Category {
	case model.PostCategoryRoommate:
		switch {
		case post.Community == "":
			missing = "community"
		case post.Rent == nil:
			missing = "rent"
		case post.StartDate == nil:
			missing = "start_date"
		}
	case model.PostCategorySell:
		switch {
		case post.Price == nil:
			missing = "price"
		case post.Item == "":
			missing = "item"
		}
	case model.PostCategoryCarpool:
		switch {
		case post.FromLocation == "":
			missing = "from_location"
		case post.ToLocation == "":
			missing = "to_location"
		case post.DepartureTime == nil:
			missing = "departure_time"
		}
	default:
		return ErrParamInvalid
	}
	if missing != "" {
		return errors.WithMessage(ErrMissingField, missing)
	}
	return nil
}

// CheckSpam 发帖前预检，不写入任何数据
func (s *postServiceImpl) CheckSpam(_ context.Context, req *dto.CheckSpamDTO) *dto.CheckSpamResultDTO {
	summary := s.moderation.CheckSubmission(req.Title, req.Description, model.PostCategory(req.Category))
	return &dto.CheckSpamResultDTO{
		Blocked:    summary.Confidence > s.moderation.GateThreshold(),
		Flagged:    summary.Flagged,
		Confidence: summary.Confidence,
		Issues:     summary.Issues,
		Threshold:  s.moderation.GateThreshold(),
	}
}

// GetPost 作者可见全部状态与审核详情，其他人只能看到已发布帖子
func (s *postServiceImpl) GetPost(ctx context.Context, viewerID uint64, postID string) (*dto.PostDTO, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.OwnerID == viewerID {
		return toPostDTO(post, true), nil
	}
	if post.Status != model.PostStatusPublished {
		return nil, ErrPostNotFound
	}
	return toPostDTO(post, false), nil
}

// GetModerationStatus 仅作者可查看
func (s *postServiceImpl) GetModerationStatus(ctx context.Context, userID uint64, postID string) (*dto.ModerationStatusDTO, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.OwnerID != userID {
		return nil, ForbiddenError
	}
	return &dto.ModerationStatusDTO{
		PostID:      post.ID,
		Status:      string(post.Status),
		Reason:      post.ModerationReason,
		Error:       post.ModerationError,
		Analysis:    post.ModerationAnalysis,
		PassedAt:    post.ModerationPassedAt,
		CompletedAt: post.ModerationCompletedAt,
		FailedAt:    post.FailedAt,
	}, nil
}

func (s *postServiceImpl) ListFeed(ctx context.Context, page, pageSize int) (*dto.PostListDTO, error) {
	page, pageSize = normalizePage(page, pageSize)
	posts, total, err := s.postRepo.ListPublished(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list published posts")
	}
	return toPostList(posts, total, page, pageSize, false), nil
}

func (s *postServiceImpl) ListMyPosts(ctx context.Context, userID uint64, query *dto.MyPostsQuery) (*dto.PostListDTO, error) {
	page, pageSize := normalizePage(query.Page, query.PageSize)
	posts, total, err := s.postRepo.ListByOwner(ctx, repository.OwnerFilter{
		OwnerID:  userID,
		Status:   model.PostStatus(query.Status),
		Category: model.PostCategory(query.Category),
		Keyword:  query.Keyword,
	}, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list owner posts")
	}
	return toPostList(posts, total, page, pageSize, true), nil
}

// UpdatePostStatus 作者关闭已发布帖子，或重新开放已关闭帖子
func (s *postServiceImpl) UpdatePostStatus(ctx context.Context, userID uint64, postID string, status model.PostStatus) error {
	var from []model.PostStatus
	switch status {
	case model.PostStatusClosed:
		from = []model.PostStatus{model.PostStatusPublished}
	case model.PostStatusPublished:
		from = []model.PostStatus{model.PostStatusClosed}
	default:
		return ErrInvalidStatus
	}

	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != userID {
		return ForbiddenError
	}

	applied, err := s.postRepo.UpdatePostStatus(ctx, postID, from, status)
	if err != nil {
		return errors.Wrap(err, "update post status")
	}
	if !applied {
		return ErrInvalidStatus
	}
	return nil
}

// DeletePost 软删除，审核中的帖子删除后审核结果不会再写入
func (s *postServiceImpl) DeletePost(ctx context.Context, userID uint64, postID string) error {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != userID {
		return ForbiddenError
	}

	applied, err := s.postRepo.UpdatePostStatus(ctx, postID, []model.PostStatus{
		model.PostStatusProcessing,
		model.PostStatusPublished,
		model.PostStatusFailed,
		model.PostStatusClosed,
	}, model.PostStatusDeleted)
	if err != nil {
		return errors.Wrap(err, "delete post")
	}
	if !applied {
		return ErrPostNotFound
	}
	if len(post.Images) > 0 && s.images != nil {
		s.images.Delete(ctx, post.Images)
	}
	return nil
}

// loadPost 已删除帖子视为不存在
func (s *postServiceImpl) loadPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, errors.Wrap(err, "get post")
	}
	if post == nil || post.Status == model.PostStatusDeleted {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = consts.DefaultPageSize
	}
	if pageSize > consts.MaxPageSize {
		pageSize = consts.MaxPageSize
	}
	return page, pageSize
}

func toPostList(posts []*model.Post, total int64, page, pageSize int, owner bool) *dto.PostListDTO {
	list := make([]*dto.PostDTO, 0, len(posts))
	for _, p := range posts {
		list = append(list, toPostDTO(p, owner))
	}
	return &dto.PostListDTO{List: list, Total: total, Page: page, PageSize: pageSize}
}

// toPostDTO owner 为 false 时只暴露是否通过审核
func toPostDTO(post *model.Post, owner bool) *dto.PostDTO {
	item := &dto.PostDTO{}
	_ = copier.Copy(item, post)
	item.Status = string(post.Status)
	item.Category = string(post.Category)
	if item.Images == nil {
		item.Images = []model.PostImage{}
	}

	switch {
	case owner && post.ModerationAnalysis != nil:
		item.Moderation = post.ModerationAnalysis
	case !owner && post.Status == model.PostStatusPublished:
		item.Moderation = dto.RedactedModeration{Passed: true}
	}
	return item
}
