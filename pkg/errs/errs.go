// Package errs 定义了核心层统一的错误分类
// 调用方通过 errors.Is 判断错误类别，而不是匹配字符串
package errs

import "errors"

var (
	// ErrValidation 参数非法 (错误的 CID、空名字、负数 size、未知的 pin 类型)
	// 在访问任何存储之前就会被拒绝，不应重试
	ErrValidation = errors.New("validation error")

	// ErrNotFound 遍历/下钻过程中缺失的块
	ErrNotFound = errors.New("not found")

	// ErrConflict 状态冲突，例如 "already pinned recursively" 或 "not pinned"
	ErrConflict = errors.New("conflict")

	// ErrStore 底层持久化失败 (flush pin 集合、写节点)
	// 触发它的变更不能被视为已提交
	ErrStore = errors.New("store error")
)

// IsRetryable 只有存储层错误才可能在调用层重试，核心层自身从不重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore)
}
