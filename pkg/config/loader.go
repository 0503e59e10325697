package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RepoDir 仓库元数据目录名
const RepoDir = ".dv"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.dv -> ~/.dv
		viper.AddConfigPath(".")
		viper.AddConfigPath(RepoDir)
		viper.AddConfigPath(filepath.Join(home, RepoDir))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 3. 环境变量 (DV_STORAGE_PATH, DV_DIR_SHARD_SPLIT_THRESHOLD ...)
	viper.SetEnvPrefix("DV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件，找不到文件不算错
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return nil
}

// Used 返回实际使用的配置文件，没有时为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	wd, _ := os.Getwd()
	repo := filepath.Join(wd, RepoDir)

	// 存储
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(repo, "blocks"))
	viper.SetDefault("storage.s3.region", "us-east-1")

	// 缓存
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.node_cache_size", 4096)

	// 持久化 KV (pin 集合、根指针)
	viper.SetDefault("datastore.type", "bolt")
	viper.SetDefault("datastore.path", filepath.Join(repo, "datastore.db"))

	// 数据库
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 目录
	viper.SetDefault("dir.shard_split_threshold", 1000)
	viper.SetDefault("dir.fanout", 256)
	viper.SetDefault("dir.cid_version", 0)
	viper.SetDefault("dir.hash_alg", "sha2-256")
	viper.SetDefault("dir.codec", "dag-pb")

	// 导入
	viper.SetDefault("import.raw_leaves", true)
	viper.SetDefault("import.concurrency", 4)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("remote.addr", "localhost:8080")
}
