package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"dagvault/pkg/datastore"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("dagvault")

// Datastore 基于 bbolt 的单文件实现
// 值的布局：8 字节大端版本号 + 原始值
type Datastore struct {
	db *bbolt.DB
}

// Open 打开 (或创建) 数据库文件
func Open(path string) (*Datastore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt datastore %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init bolt bucket: %w", err)
	}
	return &Datastore{db: db}, nil
}

func encode(version int64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(version))
	copy(buf[8:], value)
	return buf
}

func decode(raw []byte) (datastore.Entry, error) {
	if len(raw) < 8 {
		return datastore.Entry{}, fmt.Errorf("corrupt bolt record of %d bytes", len(raw))
	}
	return datastore.Entry{
		Version: int64(binary.BigEndian.Uint64(raw[:8])),
		Value:   append([]byte(nil), raw[8:]...),
	}, nil
}

func (d *Datastore) Get(ctx context.Context, key string) (datastore.Entry, error) {
	var e datastore.Entry
	err := d.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: key %s", datastore.ErrNotFound, key)
		}
		var err error
		e, err = decode(raw)
		return err
	})
	return e, err
}

// version 读取当前版本号，不存在时为 0
func version(b *bbolt.Bucket, key string) (int64, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return 0, nil
	}
	e, err := decode(raw)
	return e.Version, err
}

func (d *Datastore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v, err := version(b, key)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), encode(v+1, value))
	})
}

func (d *Datastore) CompareAndSwap(ctx context.Context, key string, value []byte, oldVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v, err := version(b, key)
		if err != nil {
			return err
		}
		if v != oldVersion {
			return datastore.ErrConcurrentUpdate
		}
		return b.Put([]byte(key), encode(v+1, value))
	})
}

func (d *Datastore) Delete(ctx context.Context, key string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (d *Datastore) Close() error {
	return d.db.Close()
}
