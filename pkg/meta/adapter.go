package meta

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config 数据库配置
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable" for local
}

// DB 封装了 GORM 实例，作为元数据层的入口
type DB struct {
	conn *gorm.DB
}

// Models 元数据层的全部表
func Models() []any {
	return []any{&KVRecord{}, &PinRecord{}, &FileIndex{}}
}

// NewDB 初始化 Postgres 连接
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 验证连接是否存活
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	d := &DB{conn: db}
	if err := d.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	return d, nil
}

// NewSQLiteDB 打开单机使用的 SQLite 文件
func NewSQLiteDB(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	d := &DB{conn: db}
	if err := d.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	return d, nil
}

// NewWithConn 允许使用现有的 GORM 连接初始化 DB
// 用于依赖注入和单元测试
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// AutoMigrate 自动迁移表结构
func (d *DB) AutoMigrate(models ...any) error {
	return d.conn.AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 关闭底层连接池
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
