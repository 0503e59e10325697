// Package ignore 实现 dv add 的 .dvignore 规则。
package ignore

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 用户自定义规则文件
const FileName = ".dvignore"

// Matcher 判断一个路径是否应该在导入时被忽略
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 导入的根目录 (在其中查找 .dvignore)
func NewMatcher(rootPath string) (*Matcher, error) {
	// 1. 系统级默认规则，强制生效
	defaultRules := []string{
		".dv",  // 仓库元数据目录，导入它会无限递归
		".git", // Git 仓库数据

		// 安全与配置
		"config.yaml", // 可能包含 S3 Secret Key
		".env",

		// 常见垃圾文件
		".DS_Store",
		"Thumbs.db",
	}

	// 2. 合并用户规则，默认规则追加在最后
	ignoreFilePath := filepath.Join(rootPath, FileName)
	if _, err := os.Stat(ignoreFilePath); err == nil {
		ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
		if err != nil {
			return nil, err
		}
		return &Matcher{ignorer: ignorer}, nil
	}
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultRules...)}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于导入根目录的路径 (例如 "data/model.bin")
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}

// Walk 遍历 root 下所有未被忽略的普通文件
// fn 收到的 rel 是以 "/" 分隔的相对路径；root 本身是文件时 rel 为文件名
func (m *Matcher) Walk(root string, fn func(path, rel string, d fs.DirEntry) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fn(root, filepath.Base(root), fs.FileInfoToDirEntry(info))
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if m.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path, filepath.ToSlash(rel), d)
	})
}
