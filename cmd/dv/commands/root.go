package commands

import (
	"fmt"
	"os"

	"dagvault/pkg/app"
	"dagvault/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	DV *app.App
	// owned 表示 DV 由 PersistentPreRunE 创建，需要在结束时关闭
	owned bool
)

// annotationNoApp 标记不需要本地仓库的命令
const annotationNoApp = "dv/no-app"

var rootCmd = &cobra.Command{
	Use:           "dv",
	Short:         "dagvault: content-addressed DAG store with pinning and sharded directories",
	SilenceUsage:  true,
	SilenceErrors: false,
	// 所有子命令执行前统一初始化 App
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := cmd.Annotations[annotationNoApp]; ok || DV != nil {
			return nil
		}
		var err error
		DV, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize dagvault: %w\n(Did you run 'dv init'?)", err)
		}
		owned = true
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !owned || DV == nil {
			return nil
		}
		err := DV.Close()
		DV, owned = nil, false
		return err
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.dv/config.yaml)")

	// 绑定到 Viper：既可以写在 yaml 里，也可以用参数覆盖
	bind := func(flag, key, value, usage string) {
		rootCmd.PersistentFlags().String(flag, value, usage)
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
	bind("storage-path", "storage.path", "", "directory to store blocks")
	bind("log-level", "log.level", "", "log level (debug, info, warn, error)")
	bind("remote", "remote.addr", "", "dv-server address for push")
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
