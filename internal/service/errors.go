package service

import (
	"errors"

	"Bazaar/internal/pkg/moderation"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid     = errors.New("参数错误")
	ErrMissingField     = errors.New("缺少必填字段")
	ErrImageInvalid     = errors.New("图片格式错误")
	ErrImageProcess     = errors.New("图片处理失败")
	ErrTooManyImages    = errors.New("图片数量超过限制")
	ErrPostNotFound     = errors.New("帖子不存在")
	ErrInvalidStatus    = errors.New("帖子状态不允许该操作")
	ErrContentRejected  = errors.New("内容未通过审核")
	ErrModerationBusy   = errors.New("审核队列繁忙，请稍后重试")
	ErrRuleGroupInvalid = errors.New("规则分组不存在")
	UnauthorizedError   = errors.New("权限不足")
	ForbiddenError      = errors.New("无权访问该帖子")
	UnExpectedError     = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:                BadRequest,
	ErrMissingField:                BadRequest,
	ErrImageInvalid:                BadRequest,
	ErrImageProcess:                BadRequest,
	ErrTooManyImages:               BadRequest,
	ErrPostNotFound:                NotFound,
	ErrInvalidStatus:               BadRequest,
	ErrContentRejected:             BadRequest,
	ErrModerationBusy:              ServiceUnavailable,
	ErrRuleGroupInvalid:            BadRequest,
	moderation.ErrEmptyKeyword:     BadRequest,
	moderation.ErrKeywordNotFound:  NotFound,
	moderation.ErrInvalidThreshold: BadRequest,
	UnauthorizedError:              Unauthorized,
	ForbiddenError:                 Forbidden,
	UnExpectedError:                InternalServerError,
}

// GateRejection 提交前检查拒绝，携带合并后的文本结果
type GateRejection struct {
	Summary moderation.TextSummary
}

func (e *GateRejection) Error() string {
	return ErrContentRejected.Error()
}

func (e *GateRejection) Unwrap() error {
	return ErrContentRejected
}
