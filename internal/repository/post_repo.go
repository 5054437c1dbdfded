package repository

import (
	"context"
	"errors"
	"time"

	"Bazaar/internal/model"

	"gorm.io/gorm"
)

// PostRepo 帖子存储。状态终态写入只在 PROCESSING 时生效
type PostRepo interface {
	InsertPost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	UpdatePostFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	UpdatePostStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus) (bool, error)
	DeletePost(ctx context.Context, id string) error
	ListPublished(ctx context.Context, offset, limit int) ([]*model.Post, int64, error)
	ListByOwner(ctx context.Context, filter OwnerFilter, offset, limit int) ([]*model.Post, int64, error)
	ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*model.Post, error)
}

// OwnerFilter 我的帖子列表过滤条件，空值表示不过滤
type OwnerFilter struct {
	OwnerID  uint64
	Status   model.PostStatus
	Category model.PostCategory
	Keyword  string
}

type postRepoImpl struct {
	db *gorm.DB
}

func NewPostRepo(db *gorm.DB) PostRepo {
	return &postRepoImpl{db: db}
}

func (s *postRepoImpl) InsertPost(ctx context.Context, post *model.Post) error {
	return s.db.WithContext(ctx).Create(post).Error
}

// GetPostByID 不存在时返回 nil, nil
func (s *postRepoImpl) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// UpdatePostFields 仅当帖子仍处于 PROCESSING 时更新，返回是否命中
func (s *postRepoImpl) UpdatePostFields(ctx context.Context, id string, fields map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND status = ?", id, model.PostStatusProcessing).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdatePostStatus 状态迁移，from 为允许的起始状态
func (s *postRepoImpl) UpdatePostStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeletePost 物理删除，仅用于创建失败回滚
func (s *postRepoImpl) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{}).Error
}

func (s *postRepoImpl) ListPublished(ctx context.Context, offset, limit int) ([]*model.Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Post{}).Where("status = ?", model.PostStatusPublished)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*model.Post
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *postRepoImpl) ListByOwner(ctx context.Context, filter OwnerFilter, offset, limit int) ([]*model.Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("owner_id = ? AND status <> ?", filter.OwnerID, model.PostStatusDeleted)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("(title LIKE ? OR description LIKE ?)", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*model.Post
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListStaleProcessing 创建时间早于 before 且仍在审核中的帖子
func (s *postRepoImpl) ListStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PostStatusProcessing, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}
