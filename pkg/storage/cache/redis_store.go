package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/redis/go-redis/v9"
)

var log = logging.Logger("dagvault/storage/cache")

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(id cid.Cid) string {
	return "dv:blk:" + storage.Key(id)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, id cid.Cid) (bool, error) {
	key := s.cacheKey(id)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级为无缓存模式，直接查底层
		log.Warnw("redis exists failed, falling back to backend", "error", err)
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, id)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填，异步写入，上层 ctx 取消也能完成
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 利用 Has 的缓存能力进行预检
func (s *CachedStore) Put(ctx context.Context, blk core.Block) error {
	exists, err := s.Has(ctx, blk.Cid())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.backend.Put(ctx, blk); err != nil {
		return err
	}

	// 只有底层写成功了，才写 Redis
	if err := s.client.Set(ctx, s.cacheKey(blk.Cid()), "1", s.ttl).Err(); err != nil {
		log.Warnw("redis set failed", "cid", blk.Cid(), "error", err)
	}
	return nil
}

// Get 透传，块数据不进 Redis
func (s *CachedStore) Get(ctx context.Context, id cid.Cid) (io.ReadCloser, error) {
	return s.backend.Get(ctx, id)
}

// Delete 先删缓存再删底层，避免缓存声称一个已经不存在的块
func (s *CachedStore) Delete(ctx context.Context, id cid.Cid) error {
	if err := s.client.Del(ctx, s.cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return s.backend.Delete(ctx, id)
}
