package moderation

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	ErrEmptyKeyword     = errors.New("keyword is empty")
	ErrKeywordNotFound  = errors.New("keyword not found")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrImageDecode      = errors.New("image decode failed")
)

// Category 文本引擎使用的小写分类
type Category string

const (
	CategoryRoommate Category = "roommate"
	CategorySell     Category = "sell"
	CategoryCarpool  Category = "carpool"
	CategoryGeneral  Category = "general"
)

// Action 审核动作
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// TextContext 分类相关检查使用的上下文
type TextContext struct {
	Price    *float64 `json:"price,omitempty"`
	Rent     *float64 `json:"rent,omitempty"`
	Location string   `json:"location,omitempty"`
	Owner    string   `json:"owner,omitempty"`
}

// TextResult 单个文本字段的审核结果
type TextResult struct {
	Flagged     bool      `json:"is_flagged" bson:"is_flagged"`
	Confidence  float64   `json:"confidence" bson:"confidence"`
	Issues      []string  `json:"issues" bson:"issues"`
	TotalIssues int       `json:"total_issues" bson:"total_issues"`
	Message     string    `json:"message" bson:"message"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// TextSummary 标题 + 描述合并后的结果，保留各字段原始结果用于审计
type TextSummary struct {
	Flagged        bool        `json:"is_flagged" bson:"is_flagged"`
	Confidence     float64     `json:"confidence" bson:"confidence"`
	Issues         []string    `json:"issues" bson:"issues"`
	TotalIssues    int         `json:"total_issues" bson:"total_issues"`
	Title          *TextResult `json:"title_analysis" bson:"title_analysis"`
	Description    *TextResult `json:"description_analysis" bson:"description_analysis"`
	Recommendation Action      `json:"recommendation" bson:"recommendation"`
	Message        string      `json:"message" bson:"message"`
}

// ImageMetadata 解码得到的图片信息
type ImageMetadata struct {
	Width     int    `json:"width,omitempty" bson:"width,omitempty"`
	Height    int    `json:"height,omitempty" bson:"height,omitempty"`
	Format    string `json:"format,omitempty" bson:"format,omitempty"`
	Mode      string `json:"mode,omitempty" bson:"mode,omitempty"`
	SizeBytes int    `json:"size_bytes,omitempty" bson:"size_bytes,omitempty"`
}

// ImageAnalysis 单张图片的结果
type ImageAnalysis struct {
	ImageID    string        `json:"image_id" bson:"image_id"`
	Flagged    bool          `json:"is_flagged" bson:"is_flagged"`
	Confidence float64       `json:"confidence" bson:"confidence"`
	Issues     []string      `json:"issues" bson:"issues"`
	Metadata   ImageMetadata `json:"metadata" bson:"metadata"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
}

// ImageResult 一个帖子全部图片的聚合结果
type ImageResult struct {
	Flagged     bool            `json:"is_flagged" bson:"is_flagged"`
	Confidence  float64         `json:"confidence" bson:"confidence"`
	Issues      []string        `json:"issues" bson:"issues"`
	TotalImages int             `json:"total_images" bson:"total_images"`
	Images      []ImageAnalysis `json:"processed_images" bson:"processed_images"`
	Message     string          `json:"message" bson:"message"`
	Timestamp   time.Time       `json:"timestamp" bson:"timestamp"`
}

// Decision 帖子最终审核结论，仅写入帖子的 moderation_analysis，不单独持久化
type Decision struct {
	Action     Action       `json:"action" bson:"action"`
	Reason     string       `json:"reason" bson:"reason"`
	Confidence float64      `json:"confidence" bson:"confidence"`
	Issues     []string     `json:"all_issues" bson:"all_issues"`
	Text       *TextSummary `json:"text_analysis" bson:"text_analysis"`
	Image      *ImageResult `json:"image_analysis" bson:"image_analysis"`
	Timestamp  time.Time    `json:"timestamp" bson:"timestamp"`
}

var nowUTC = func() time.Time { return time.Now().UTC() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func newTextResult(flagged bool, confidence float64, issues []string, message string) TextResult {
	if issues == nil {
		issues = []string{}
	}
	return TextResult{
		Flagged:     flagged,
		Confidence:  round3(confidence),
		Issues:      issues,
		TotalIssues: len(issues),
		Message:     message,
		Timestamp:   nowUTC(),
	}
}

// MergeText 合并标题与描述结果：flag 取或，置信度取最大，问题按顺序拼接
func MergeText(title, description TextResult) TextSummary {
	issues := make([]string, 0, len(title.Issues)+len(description.Issues))
	issues = append(issues, title.Issues...)
	issues = append(issues, description.Issues...)

	flagged := title.Flagged || description.Flagged
	summary := TextSummary{
		Flagged:        flagged,
		Confidence:     math.Max(title.Confidence, description.Confidence),
		Issues:         issues,
		TotalIssues:    len(issues),
		Title:          &title,
		Description:    &description,
		Recommendation: ActionApprove,
		Message:        "Content approved",
	}
	if flagged {
		summary.Recommendation = ActionReject
		summary.Message = "Content requires review"
	}
	return summary
}

// Decide 综合文本与图片结果，任一被标记即拒绝；置信度始终取两者最大值
func Decide(text TextSummary, image *ImageResult) Decision {
	confidence := text.Confidence
	if image != nil {
		confidence = math.Max(confidence, image.Confidence)
	}
	d := Decision{
		Action:     ActionApprove,
		Reason:     "Content passed all moderation checks",
		Confidence: confidence,
		Issues:     []string{},
		Text:       &text,
		Image:      image,
		Timestamp:  nowUTC(),
	}

	var reasons []string
	if text.Flagged {
		reasons = append(reasons, "Text content flagged for review")
		d.Issues = append(d.Issues, text.Issues...)
	}
	if image != nil && image.Flagged {
		reasons = append(reasons, "Images flagged for review")
		d.Issues = append(d.Issues, image.Issues...)
	}
	if len(reasons) > 0 {
		d.Action = ActionReject
		d.Reason = strings.Join(reasons, "; ")
	}
	return d
}
