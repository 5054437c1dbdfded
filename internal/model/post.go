package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"Bazaar/internal/pkg/moderation"

	"github.com/goccy/go-json"
)

// PostStatus 帖子状态
type PostStatus string

const (
	PostStatusProcessing PostStatus = "PROCESSING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
	PostStatusClosed     PostStatus = "CLOSED"
	PostStatusDeleted    PostStatus = "DELETED"
)

// PostCategory 帖子分类
type PostCategory string

const (
	PostCategoryRoommate PostCategory = "ROOMMATE"
	PostCategorySell     PostCategory = "SELL"
	PostCategoryCarpool  PostCategory = "CARPOOL"
)

// Post 校园二手/合租/拼车帖子
type Post struct {
	ID       string       `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	OwnerID  uint64       `gorm:"not null;index:idx_owner_id" json:"owner_id" bson:"owner_id"`
	Category PostCategory `gorm:"type:varchar(16);not null" json:"category" bson:"category"`
	Title    string       `gorm:"type:varchar(255);not null" json:"title" bson:"title"`
	// Description 允许为空字符串，审核时按空文本处理
	Description string `gorm:"type:text;not null" json:"description" bson:"description"`

	// ROOMMATE
	Community        string     `gorm:"type:varchar(255)" json:"community,omitempty" bson:"community,omitempty"`
	Rent             *float64   `json:"rent,omitempty" bson:"rent,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty" bson:"start_date,omitempty"`
	GenderPreference string     `gorm:"type:varchar(16)" json:"gender_preference,omitempty" bson:"gender_preference,omitempty"`
	Preferences      StringList `gorm:"type:json" json:"preferences,omitempty" bson:"preferences,omitempty"`

	// SELL
	Price       *float64 `json:"price,omitempty" bson:"price,omitempty"`
	Item        string   `gorm:"type:varchar(255)" json:"item,omitempty" bson:"item,omitempty"`
	SubCategory string   `gorm:"type:varchar(32)" json:"sub_category,omitempty" bson:"sub_category,omitempty"`

	// CARPOOL
	FromLocation   string     `gorm:"type:varchar(255)" json:"from_location,omitempty" bson:"from_location,omitempty"`
	ToLocation     string     `gorm:"type:varchar(255)" json:"to_location,omitempty" bson:"to_location,omitempty"`
	DepartureTime  *time.Time `json:"departure_time,omitempty" bson:"departure_time,omitempty"`
	SeatsAvailable int        `gorm:"not null;default:0" json:"seats_available,omitempty" bson:"seats_available,omitempty"`

	Images ImageList `gorm:"type:json" json:"images" bson:"images"`

	Status                PostStatus          `gorm:"type:varchar(16);not null;index:idx_status_created" json:"status" bson:"status"`
	ModerationReason      string              `gorm:"type:varchar(512)" json:"moderation_reason,omitempty" bson:"moderation_reason,omitempty"`
	ModerationError       string              `gorm:"type:varchar(512)" json:"moderation_error,omitempty" bson:"moderation_error,omitempty"`
	ModerationAnalysis    *ModerationAnalysis `gorm:"type:json" json:"moderation_analysis,omitempty" bson:"moderation_analysis,omitempty"`
	ModerationPassedAt    *time.Time          `json:"moderation_passed_at,omitempty" bson:"moderation_passed_at,omitempty"`
	ModerationCompletedAt *time.Time          `json:"moderation_completed_at,omitempty" bson:"moderation_completed_at,omitempty"`
	FailedAt              *time.Time          `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
	CreatedAt             time.Time           `gorm:"index:idx_status_created" json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at" bson:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// PostImage 已保存图片的元数据，URL 按尺寸区分
type PostImage struct {
	ImageID    string            `json:"image_id" bson:"image_id"`
	Filename   string            `json:"filename" bson:"filename"`
	URLs       map[string]string `json:"urls" bson:"urls"`
	Original   string            `json:"original" bson:"original"`
	UploadedAt time.Time         `json:"uploaded_at" bson:"uploaded_at"`
}

// ModerationAnalysis 写入帖子的审核详情。通过时带 checked_at，拒绝时带 issues 与 detected_at
type ModerationAnalysis struct {
	Text       *moderation.TextSummary `json:"text_analysis,omitempty" bson:"text_analysis,omitempty"`
	Image      *moderation.ImageResult `json:"image_analysis,omitempty" bson:"image_analysis,omitempty"`
	Confidence float64                 `json:"confidence" bson:"confidence"`
	Issues     []string                `json:"issues,omitempty" bson:"issues,omitempty"`
	CheckedAt  *time.Time              `json:"checked_at,omitempty" bson:"checked_at,omitempty"`
	DetectedAt *time.Time              `json:"detected_at,omitempty" bson:"detected_at,omitempty"`
}

func (a ModerationAnalysis) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ModerationAnalysis) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// ImageList 图片元数据列表
type ImageList []PostImage

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ImageList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StringList 字符串列表
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dst any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
}
