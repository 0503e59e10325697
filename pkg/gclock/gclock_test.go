package gclock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCLock_SharedHoldersCoexist(t *testing.T) {
	ctx := context.Background()
	l := New()

	u1, err := l.RLock(ctx)
	require.NoError(t, err)
	u2, err := l.RLock(ctx)
	require.NoError(t, err)

	u1()
	u2()
}

func TestGCLock_ExclusiveWaitsForShared(t *testing.T) {
	ctx := context.Background()
	l := New()

	shared, err := l.RLock(ctx)
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock, err := l.Lock(ctx)
		if err != nil {
			return
		}
		acquired.Store(true)
		unlock()
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "排他锁必须等待共享锁释放")

	shared()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exclusive lock never acquired")
	}
	assert.True(t, acquired.Load())
}

func TestGCLock_PendingExclusiveBlocksNewShared(t *testing.T) {
	ctx := context.Background()
	l := New()

	shared, err := l.RLock(ctx)
	require.NoError(t, err)

	exclusiveDone := make(chan struct{})
	go func() {
		unlock, err := l.Lock(ctx)
		if err == nil {
			time.Sleep(20 * time.Millisecond)
			unlock()
		}
		close(exclusiveDone)
	}()
	time.Sleep(50 * time.Millisecond)

	// 排他锁在排队，新的共享请求应当超时
	tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.RLock(tctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	shared()
	<-exclusiveDone

	// 排他锁释放后共享锁恢复可用
	u, err := l.RLock(ctx)
	require.NoError(t, err)
	u()
}

func TestGCLock_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewWithCapacity(2)

	u, err := l.RLock(ctx)
	require.NoError(t, err)
	u()
	u() // 第二次释放不能多还一个名额

	// 若多释放了，信号量会 panic 或容量变大；这里确认排他锁依然能正常获取并阻塞共享锁
	ex, err := l.Lock(ctx)
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.RLock(tctx)
	assert.Error(t, err)
	ex()
}
