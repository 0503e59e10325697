// Package gclock 提供进程级的 GC 读写锁。
//
// pin 操作持有共享锁，垃圾回收持有排他锁。排他锁等待期间新的共享请求也会排队，
// 回收器因此能看到一个静止的 pin 状态。
package gclock

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/semaphore"
)

var log = logging.Logger("dagvault/gclock")

// DefaultCapacity 同时持有共享锁的上限
const DefaultCapacity = 1 << 20

// Unlocker 释放锁，多次调用只生效一次
type Unlocker func()

// Locker 是 GC 锁的抽象
type Locker interface {
	RLock(ctx context.Context) (Unlocker, error)
	Lock(ctx context.Context) (Unlocker, error)
}

// GCLock 基于加权信号量：共享锁占 1，排他锁占满全部容量
// semaphore 按 FIFO 唤醒，排他请求在队首时后来的共享请求无法越过它
type GCLock struct {
	sem      *semaphore.Weighted
	capacity int64
}

func New() *GCLock {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int64) *GCLock {
	return &GCLock{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
	}
}

// RLock 获取共享锁
func (l *GCLock) RLock(ctx context.Context) (Unlocker, error) {
	return l.acquire(ctx, 1, "shared")
}

// Lock 获取排他锁，等待所有共享持有者释放
func (l *GCLock) Lock(ctx context.Context) (Unlocker, error) {
	return l.acquire(ctx, l.capacity, "exclusive")
}

func (l *GCLock) acquire(ctx context.Context, n int64, mode string) (Unlocker, error) {
	if err := l.sem.Acquire(ctx, n); err != nil {
		return nil, err
	}
	log.Debugw("gc lock acquired", "mode", mode)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(n)
			log.Debugw("gc lock released", "mode", mode)
		})
	}, nil
}
