package consts

const (
	MimePrefixImage = "image"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxImagesPerPost 单帖图片上限
	MaxImagesPerPost = 9
)

// 发帖时未填写的分类字段默认值
const (
	DefaultGenderPreference = "ANY"
	DefaultSubCategory      = "OTHER"
	DefaultSeatsAvailable   = 1
)

const (
	ModerationQueueFullError = "moderation queue full"
	ModerationTimeoutError   = "moderation timed out"
)
