package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 键值记录 (KV)
// -----------------------------------------------------------------------------

// GetKV 读取一条记录
func (r *Repository) GetKV(ctx context.Context, key string) (*KVRecord, error) {
	var rec KVRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", key).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutKV 无条件写入，版本号自增
func (r *Repository) PutKV(ctx context.Context, key string, value []byte) error {
	rec := KVRecord{Name: key, Value: value, Version: 1, UpdatedAt: time.Now()}
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      value,
				"version":    gorm.Expr("kv_records.version + 1"),
				"updated_at": rec.UpdatedAt,
			}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// CompareAndSwapKV 原子更新 (CAS - Compare And Swap)
// oldVersion: 之前读到的版本号；0 表示记录必须不存在
// 数据库里的版本号不等于 oldVersion 时返回 ErrConcurrentUpdate
func (r *Repository) CompareAndSwapKV(ctx context.Context, key string, value []byte, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 场景 A: 第一次创建 (Create)
		if oldVersion == 0 {
			rec := KVRecord{Name: key, Value: value, Version: 1}
			if err := tx.Create(&rec).Error; err != nil {
				// 兼容不同数据库 (PG 与 SQLite) 的唯一约束错误
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create %s: %w", key, err)
			}
			return nil
		}

		// 场景 B: 更新现有记录 (Update with CAS)
		// SQL: UPDATE kv_records SET value = ?, version = version + 1 WHERE name = ? AND version = ?
		result := tx.Model(&KVRecord{}).
			Where("name = ? AND version = ?", key, oldVersion).
			Updates(map[string]any{
				"value":      value,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}

		// 影响行数为 0，说明 version 不匹配（被人抢先改了）
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})
}

// DeleteKV 删除记录，不存在时不报错
func (r *Repository) DeleteKV(ctx context.Context, key string) error {
	return r.db.GetConn().WithContext(ctx).
		Where("name = ?", key).
		Delete(&KVRecord{}).Error
}

// -----------------------------------------------------------------------------
// 2. Pin 投影
// -----------------------------------------------------------------------------

// IndexPins 用最新的 pin 集合覆盖投影
func (r *Repository) IndexPins(ctx context.Context, key string, direct, recursive []string) error {
	directJSON, err := json.Marshal(direct)
	if err != nil {
		return fmt.Errorf("failed to marshal direct pins: %w", err)
	}
	recursiveJSON, err := json.Marshal(recursive)
	if err != nil {
		return fmt.Errorf("failed to marshal recursive pins: %w", err)
	}

	rec := PinRecord{
		Name:           key,
		Direct:         datatypes.JSON(directJSON),
		Recursive:      datatypes.JSON(recursiveJSON),
		DirectCount:    int64(len(direct)),
		RecursiveCount: int64(len(recursive)),
		UpdatedAt:      time.Now(),
	}
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to index pins: %w", err)
	}
	return nil
}

// GetPinRecord 读取 pin 投影
func (r *Repository) GetPinRecord(ctx context.Context, key string) (*PinRecord, error) {
	var rec PinRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountPins 返回 (direct, recursive) 数量，没有投影时为 0
func (r *Repository) CountPins(ctx context.Context, key string) (int64, int64, error) {
	rec, err := r.GetPinRecord(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return rec.DirectCount, rec.RecursiveCount, nil
}

// -----------------------------------------------------------------------------
// 3. 文件索引 (秒传)
// -----------------------------------------------------------------------------

// GetFileIndex 未命中时返回 (nil, nil)
func (r *Repository) GetFileIndex(ctx context.Context, linearHash string) (*FileIndex, error) {
	var idx FileIndex
	err := r.db.GetConn().WithContext(ctx).
		Where("linear_hash = ?", linearHash).
		First(&idx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// SaveFileIndex 幂等写入，已存在的索引不会被覆盖 (First write wins)
func (r *Repository) SaveFileIndex(ctx context.Context, linearHash, rootCid string, size int64) error {
	idx := FileIndex{
		LinearHash: linearHash,
		RootCid:    rootCid,
		SizeBytes:  size,
		CreatedAt:  time.Now(),
	}
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "linear_hash"}},
			DoNothing: true,
		}).
		Create(&idx).Error
	if err != nil {
		return fmt.Errorf("failed to save file index: %w", err)
	}
	return nil
}
