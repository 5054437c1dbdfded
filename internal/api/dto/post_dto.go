package dto

import (
	"time"

	"Bazaar/internal/model"
)

// PostDTO 帖子详情，Moderation 对非作者只给出 {passed: true}
type PostDTO struct {
	ID          string `json:"id"`
	OwnerID     uint64 `json:"owner_id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Community        string     `json:"community,omitempty"`
	Rent             *float64   `json:"rent,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	GenderPreference string     `json:"gender_preference,omitempty"`
	Preferences      []string   `json:"preferences,omitempty"`

	Price       *float64 `json:"price,omitempty"`
	Item        string   `json:"item,omitempty"`
	SubCategory string   `json:"sub_category,omitempty"`

	FromLocation   string     `json:"from_location,omitempty"`
	ToLocation     string     `json:"to_location,omitempty"`
	DepartureTime  *time.Time `json:"departure_time,omitempty"`
	SeatsAvailable int        `json:"seats_available,omitempty"`

	Images     []model.PostImage `json:"images"`
	Status     string            `json:"status"`
	Moderation interface{}       `json:"moderation,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// RedactedModeration 非作者可见的审核信息
type RedactedModeration struct {
	Passed bool `json:"passed"`
}

// ModerationStatusDTO 作者查看的审核状态
type ModerationStatusDTO struct {
	PostID      string                    `json:"post_id"`
	Status      string                    `json:"status"`
	Reason      string                    `json:"moderation_reason,omitempty"`
	Error       string                    `json:"moderation_error,omitempty"`
	Analysis    *model.ModerationAnalysis `json:"moderation_analysis,omitempty"`
	PassedAt    *time.Time                `json:"moderation_passed_at,omitempty"`
	CompletedAt *time.Time                `json:"moderation_completed_at,omitempty"`
	FailedAt    *time.Time                `json:"failed_at,omitempty"`
}

// PostListDTO 分页列表
type PostListDTO struct {
	List     []*PostDTO `json:"list"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// PageQuery 公共分页参数
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,gte=1"`
	PageSize int `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// MyPostsQuery 我的帖子过滤
type MyPostsQuery struct {
	PageQuery
	Status   string `form:"status" binding:"omitempty,oneof=PROCESSING PUBLISHED FAILED CLOSED"`
	Category string `form:"category" binding:"omitempty,oneof=ROOMMATE SELL CARPOOL"`
	Keyword  string `form:"keyword" binding:"max=64"`
}

// UpdatePostStatusDTO 作者关闭或重新开放帖子
type UpdatePostStatusDTO struct {
	Status string `json:"status" binding:"required,oneof=CLOSED PUBLISHED"`
}
