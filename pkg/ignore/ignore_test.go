package ignore

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	// 1. 空目录 (没有 .dvignore)
	matcher, err := NewMatcher(t.TempDir())
	require.NoError(t, err)

	// 2. 验证默认规则
	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".dv", true},
		{".dv/objects/aa", true}, // 子路径也应该被忽略
		{".git", true},
		{"config.yaml", true},
		{".DS_Store", true},
		{"main.go", false},
		{"data/model.bin", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	tmpDir := t.TempDir()

	ignoreContent := `
# 这是注释
*.log
temp
!important.log
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte(ignoreContent), 0o644))

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		// 默认规则依然生效
		{".dv", true},
		{"config.yaml", true},

		// 用户规则
		{"app.log", true},
		{"logs/error.log", true},
		{"temp", true},
		{"temp/file", true},

		{"main.go", false},

		// 负向规则
		{"important.log", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_Walk(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
	mustWrite("a.txt")
	mustWrite("sub/b.bin")
	mustWrite("sub/debug.log")
	mustWrite(".dv/objects/xx")
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("*.log\n"), 0o644))

	matcher, err := NewMatcher(root)
	require.NoError(t, err)

	var got []string
	err = matcher.Walk(root, func(_, rel string, _ fs.DirEntry) error {
		got = append(got, rel)
		return nil
	})
	require.NoError(t, err)
	slices.Sort(got)
	assert.Equal(t, []string{".dvignore", "a.txt", "sub/b.bin"}, got)

	// 单个文件
	got = nil
	err = matcher.Walk(filepath.Join(root, "a.txt"), func(_, rel string, _ fs.DirEntry) error {
		got = append(got, rel)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, got)
}
