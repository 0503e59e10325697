// Package app 是整个应用程序的依赖容器，按配置组装存储、pin、目录编辑等服务。
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dagvault/pkg/core"
	"dagvault/pkg/dag"
	"dagvault/pkg/datastore"
	"dagvault/pkg/datastore/bolt"
	"dagvault/pkg/datastore/sqlds"
	"dagvault/pkg/dirs"
	"dagvault/pkg/exporter"
	"dagvault/pkg/gclock"
	"dagvault/pkg/index"
	"dagvault/pkg/ingester"
	"dagvault/pkg/meta"
	"dagvault/pkg/mfs"
	"dagvault/pkg/pin"
	"dagvault/pkg/refs"
	"dagvault/pkg/resolve"
	"dagvault/pkg/storage"
	"dagvault/pkg/storage/cache"
	"dagvault/pkg/storage/disk"
	"dagvault/pkg/storage/memory"
	"dagvault/pkg/storage/s3"

	"github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

var logger = log.Logger("dagvault/app")

// App 持有所有单例服务
type App struct {
	Store      storage.Store
	DAG        *dag.Service
	Datastore  datastore.Datastore
	Repository *meta.Repository // 只有 SQL datastore 时非空
	Refs       *refs.Manager
	GCLock     *gclock.GCLock
	Resolver   *resolve.Resolver
	Pins       *pin.Manager
	Editor     *dirs.Editor
	Files      *mfs.FS
	Ingester   *ingester.Ingester
	Exporter   *exporter.Exporter
	Index      *index.Index
	DirOptions dirs.Options
	RepoPath   string
}

// NewApp 是工厂函数，遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	if err := SetupLogging(viper.GetString("log.level")); err != nil {
		return nil, err
	}

	// 1. 仓库根路径 (storage.path 的上一级，即 .dv)
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	repoPath := filepath.Dir(storePath)

	dirOpts, err := DirOptions()
	if err != nil {
		return nil, err
	}
	ingOpts, err := IngestOptions()
	if err != nil {
		return nil, err
	}

	// 2. 存储层
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	svc, err := dag.NewService(store, viper.GetInt("cache.node_cache_size"))
	if err != nil {
		return nil, err
	}

	// 3. 持久化 KV
	ds, repo, err := initDatastore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init datastore: %w", err)
	}

	a, err := assemble(ctx, store, svc, ds, repo, dirOpts, ingOpts)
	if err != nil {
		ds.Close()
		return nil, err
	}
	a.RepoPath = repoPath

	// 4. 导入缓存
	idx, err := index.NewIndex(filepath.Join(repoPath, "index.json"))
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	a.Index = idx
	return a, nil
}

// NewMemoryApp 块存储和 datastore 使用内存后端，导入缓存写在 repoPath 下
func NewMemoryApp(ctx context.Context, repoPath string, dirOpts dirs.Options, ingOpts ingester.Options) (*App, error) {
	store := memory.NewAdapter()
	svc, err := dag.NewService(store, 0)
	if err != nil {
		return nil, err
	}
	a, err := assemble(ctx, store, svc, datastore.NewMapDatastore(), nil, dirOpts, ingOpts)
	if err != nil {
		return nil, err
	}
	a.RepoPath = repoPath
	a.Index, err = index.NewIndex(filepath.Join(repoPath, "index.json"))
	return a, err
}

func assemble(ctx context.Context, store storage.Store, svc *dag.Service, ds datastore.Datastore, repo *meta.Repository, dirOpts dirs.Options, ingOpts ingester.Options) (*App, error) {
	lock := gclock.New()
	resolver := resolve.New(svc)

	pins, err := pin.NewManager(ctx, ds, svc, resolver, lock)
	if err != nil {
		return nil, fmt.Errorf("failed to load pins: %w", err)
	}
	ing, err := ingester.NewIngester(svc, ingOpts)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		pins.SetIndexer(repo)
		ing.SetIndex(repo)
	}

	rm := refs.NewManager(ds)
	return &App{
		Store:      store,
		DAG:        svc,
		Datastore:  ds,
		Repository: repo,
		Refs:       rm,
		GCLock:     lock,
		Resolver:   resolver,
		Pins:       pins,
		Editor:     dirs.NewEditor(svc),
		Files:      mfs.New(svc, rm, dirOpts),
		Ingester:   ing,
		Exporter:   exporter.NewExporter(svc),
		DirOptions: dirOpts,
	}, nil
}

// Close 释放 datastore
func (a *App) Close() error {
	if a.Datastore == nil {
		return nil
	}
	return a.Datastore.Close()
}

// SetupLogging 设置所有 dagvault 子系统的日志级别
func SetupLogging(level string) error {
	if level == "" {
		return nil
	}
	if err := log.SetLogLevelRegex("dagvault/.*", level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return nil
}

// DirOptions 从配置读取目录编辑参数
func DirOptions() (dirs.Options, error) {
	codec, err := core.CodecByName(viper.GetString("dir.codec"))
	if err != nil {
		return dirs.Options{}, err
	}
	opts := dirs.Options{
		ShardSplitThreshold: viper.GetInt("dir.shard_split_threshold"),
		Fanout:              viper.GetInt("dir.fanout"),
		CidVersion:          viper.GetUint64("dir.cid_version"),
		HashAlg:             viper.GetString("dir.hash_alg"),
		Codec:               codec,
		Flush:               true,
	}
	return opts, opts.Validate()
}

// IngestOptions 从配置读取导入参数
func IngestOptions() (ingester.Options, error) {
	opts := ingester.DefaultOptions()
	opts.HashAlg = viper.GetString("dir.hash_alg")
	opts.CidVersion = viper.GetUint64("dir.cid_version")
	opts.RawLeaves = viper.GetBool("import.raw_leaves")
	if c := viper.GetInt("import.concurrency"); c > 0 {
		opts.Concurrency = c
	}
	return opts, nil
}

// initStore 根据 storage.type 选择块存储，配置了 cache.redis_url 时外层包一层 Redis 缓存
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch t := viper.GetString("storage.type"); t {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "blocks")
		}
		store, err = disk.NewAdapter(path)
	case "memory":
		store = memory.NewAdapter()
	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, errors.New("s3 bucket is required")
		}
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", t)
	}
	if err != nil {
		return nil, err
	}

	if url := viper.GetString("cache.redis_url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, err
		}
		logger.Infow("block store cache enabled", "backend", viper.GetString("storage.type"))
		return cached, nil
	}
	return store, nil
}

// initDatastore 根据 datastore.type 选择持久化 KV
// SQL 后端同时返回 Repository，用于 pin 投影和文件索引
func initDatastore(ctx context.Context, repoPath string) (datastore.Datastore, *meta.Repository, error) {
	path := viper.GetString("datastore.path")

	switch t := viper.GetString("datastore.type"); t {
	case "", "bolt":
		if path == "" {
			path = filepath.Join(repoPath, "datastore.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		ds, err := bolt.Open(path)
		return ds, nil, err
	case "memory":
		return datastore.NewMapDatastore(), nil, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(repoPath, "meta.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := meta.NewSQLiteDB(path)
		if err != nil {
			return nil, nil, err
		}
		ds := sqlds.New(db)
		return ds, ds.Repository(), nil
	case "postgres":
		db, err := meta.NewDB(ctx, meta.Config{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
		})
		if err != nil {
			return nil, nil, err
		}
		ds := sqlds.New(db)
		return ds, ds.Repository(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported datastore type: %s", t)
	}
}
