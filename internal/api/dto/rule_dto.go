package dto

import "Bazaar/internal/pkg/moderation"

// KeywordDTO 规则关键词增删
type KeywordDTO struct {
	Group  string `json:"group" binding:"required"`
	Phrase string `json:"phrase" binding:"required,max=128"`
}

// TextThresholdsDTO 文本阈值调整，未传字段沿用当前值
type TextThresholdsDTO struct {
	MinLength       *int     `json:"min_length" binding:"omitempty,gte=0"`
	FlagConfidence  *float64 `json:"flag_confidence" binding:"omitempty,gte=0,lte=1"`
	FlagIssueCount  *int     `json:"flag_issue_count" binding:"omitempty,gte=1"`
	UppercaseRatio  *float64 `json:"uppercase_ratio" binding:"omitempty,gte=0,lte=1"`
	SuspiciousPrice *float64 `json:"suspicious_price" binding:"omitempty,gt=0"`
}

// RuleSetDTO 当前规则表
type RuleSetDTO struct {
	Version  uint64                               `json:"version"`
	Patterns map[moderation.PatternGroup][]string `json:"patterns"`
	Weights  moderation.Weights                   `json:"weights"`
	Text     moderation.TextThresholds            `json:"text"`
	Image    moderation.ImageThresholds           `json:"image"`
}
