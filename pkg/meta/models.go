package meta

import (
	"time"

	"gorm.io/datatypes"
)

// KVRecord 是通用的键值记录，datastore 的 SQL 后端用它保存 pin 集合和根指针
type KVRecord struct {
	// Name 是主键，例如 "/local/pins"
	Name string `gorm:"primaryKey;type:varchar(255)"`

	Value []byte `gorm:"not null"`

	// Version 用于乐观锁并发控制 (CAS)
	// 每次更新时 +1，防止并发覆盖
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

func (KVRecord) TableName() string {
	return "kv_records"
}

// PinRecord 是 pin 集合在关系型数据库中的投影
// 权威数据在 KVRecord 里，这里只用于查询 (数量、是否包含某个 CID)
type PinRecord struct {
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Direct / Recursive: CID 字符串数组 ["bafy...", "Qm..."]
	Direct    datatypes.JSON
	Recursive datatypes.JSON

	DirectCount    int64
	RecursiveCount int64

	UpdatedAt time.Time
}

func (PinRecord) TableName() string {
	return "pin_records"
}

// FileIndex 记录整文件哈希到已导入 DAG 的映射
// 同一个文件再次导入时直接复用，不再切分
type FileIndex struct {
	// LinearHash 是整个文件内容的 sha256 (hex)
	LinearHash string `gorm:"primaryKey;type:char(64)"`

	// RootCid 是导入后 UnixFS file 节点的 CID
	RootCid string `gorm:"type:varchar(128);not null"`

	SizeBytes int64

	CreatedAt time.Time
}

func (FileIndex) TableName() string {
	return "file_indices"
}
