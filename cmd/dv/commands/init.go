package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"dagvault/pkg/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Initialize a dagvault repository",
	Long:        `Create an empty dagvault repository (.dv) in the current directory.`,
	Annotations: map[string]string{annotationNoApp: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		repoPath := filepath.Join(wd, config.RepoDir)

		// 2. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Fprintf(out, "⚠️  dagvault repository already exists in %s\n", repoPath)
			return nil
		}

		// 3. 创建目录结构
		if err := os.MkdirAll(filepath.Join(repoPath, "blocks"), 0o755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		fmt.Fprintf(out, "✅ Initialized empty dagvault repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
