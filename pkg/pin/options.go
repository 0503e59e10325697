package pin

import (
	"fmt"
	"strings"

	"dagvault/pkg/errs"
)

// Mode 是 pin 的类型
type Mode string

const (
	ModeDirect    Mode = "direct"
	ModeRecursive Mode = "recursive"
	ModeIndirect  Mode = "indirect"
	ModeAll       Mode = "all"
)

// ParseMode 大小写不敏感，未知类型返回 ErrValidation
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDirect, ModeRecursive, ModeIndirect, ModeAll:
		return m, nil
	case "":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("%w: invalid pin type %q, must be one of direct, recursive, indirect, all", errs.ErrValidation, s)
	}
}

type options struct {
	recursive bool
	lockHeld  bool
	mode      string
	paths     []string
}

func defaultOptions() options {
	return options{recursive: true, mode: string(ModeAll)}
}

// Option 配置 Add / Rm / Ls
type Option func(*options)

// Recursive 是否递归 pin (默认 true)
func Recursive(r bool) Option {
	return func(o *options) { o.recursive = r }
}

// LockHeld 表示调用方已经持有 GC 共享锁 (例如导入内容时)，不再重复获取
func LockHeld() Option {
	return func(o *options) { o.lockHeld = true }
}

// Type 过滤 Ls 的结果：direct / recursive / indirect / all
func Type(t string) Option {
	return func(o *options) { o.mode = t }
}

// Paths 限定 Ls 只报告这些路径
func Paths(paths ...string) Option {
	return func(o *options) { o.paths = append(o.paths, paths...) }
}

func collect(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
