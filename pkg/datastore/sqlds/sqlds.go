package sqlds

import (
	"context"
	"errors"
	"fmt"

	"dagvault/pkg/datastore"
	"dagvault/pkg/meta"
)

// Datastore 把键值记录保存在 meta.KVRecord 表中
type Datastore struct {
	db   *meta.DB
	repo *meta.Repository
}

func New(db *meta.DB) *Datastore {
	return &Datastore{db: db, repo: meta.NewRepository(db)}
}

// Repository 暴露底层仓库，用于 pin 投影等查询
func (d *Datastore) Repository() *meta.Repository { return d.repo }

func (d *Datastore) Get(ctx context.Context, key string) (datastore.Entry, error) {
	rec, err := d.repo.GetKV(ctx, key)
	if errors.Is(err, meta.ErrKeyNotFound) {
		return datastore.Entry{}, fmt.Errorf("%w: key %s", datastore.ErrNotFound, key)
	}
	if err != nil {
		return datastore.Entry{}, err
	}
	return datastore.Entry{Value: rec.Value, Version: rec.Version}, nil
}

func (d *Datastore) Put(ctx context.Context, key string, value []byte) error {
	return d.repo.PutKV(ctx, key, value)
}

func (d *Datastore) CompareAndSwap(ctx context.Context, key string, value []byte, oldVersion int64) error {
	err := d.repo.CompareAndSwapKV(ctx, key, value, oldVersion)
	if errors.Is(err, meta.ErrConcurrentUpdate) {
		return datastore.ErrConcurrentUpdate
	}
	return err
}

func (d *Datastore) Delete(ctx context.Context, key string) error {
	return d.repo.DeleteKV(ctx, key)
}

func (d *Datastore) Close() error {
	return d.db.Close()
}
