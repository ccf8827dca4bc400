package resume

import "errors"

var (
	// ErrUserNotFound 表示外部标识无法解析为已注册用户。
	ErrUserNotFound = errors.New("user not found")
	// ErrVariationNotFound 表示变体不存在或不属于该用户。
	ErrVariationNotFound = errors.New("variation not found")
	// ErrLastVariation 表示拒绝删除用户最后一个变体。
	ErrLastVariation = errors.New("cannot delete the last variation")
)
