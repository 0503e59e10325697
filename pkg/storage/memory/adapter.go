package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/ipfs/go-cid"
)

// Adapter 是进程内的块存储，用于测试和 storage.type=memory
type Adapter struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func NewAdapter() *Adapter {
	return &Adapter{blocks: make(map[string][]byte)}
}

func (s *Adapter) Put(ctx context.Context, blk core.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := storage.Key(blk.Cid())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[key]; !ok {
		s.blocks[key] = bytes.Clone(blk.RawData())
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, id cid.Cid) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blocks[storage.Key(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Adapter) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[storage.Key(id)]
	return ok, nil
}

func (s *Adapter) Delete(ctx context.Context, id cid.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, storage.Key(id))
	return nil
}

// Len 当前块数量
func (s *Adapter) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
