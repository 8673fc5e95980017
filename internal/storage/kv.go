package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"thehub/internal/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Entry 键值记录
type Entry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName 表名（前缀由 NamingStrategy 追加）
func (Entry) TableName() string { return "session_kv" }

// Options SQLite 连接配置
type Options struct {
	Dsn    string
	Prefix string
	Logger logger.Logger
}

// KV 基于 gorm + SQLite 的持久化键值存储
type KV struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开数据库并迁移表结构
func Open(opts Options) (*KV, error) {
	if opts.Dsn == "" {
		return nil, errors.New("sqlite dsn is empty")
	}
	l := logger.OrNop(opts.Logger)

	if dir := filepath.Dir(opts.Dsn); dir != "." && opts.Dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(opts.Dsn), &gorm.Config{
		Logger:         NewGormLogger(l).LogMode(gormlogger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", opts.Dsn, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate session table: %w", err)
	}
	l.Debug("会话数据库就绪", "dsn", opts.Dsn, "prefix", opts.Prefix)
	return &KV{db: db, log: l}, nil
}

// Get 读取键值
func (s *KV) Get(key string) (string, bool, error) {
	var e Entry
	err := s.db.Where(&Entry{Key: key}).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, true, nil
}

// Set 写入或覆盖键值
func (s *KV) Set(key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete 删除键，不存在时不报错
func (s *KV) Delete(key string) error {
	if err := s.db.Delete(&Entry{Key: key}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close 关闭底层连接
func (s *KV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
