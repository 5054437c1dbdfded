package consts

const (
	// ModerationLockKey 帖子审核互斥锁，后接帖子 id
	ModerationLockKey = "moderation:lock:"
)
