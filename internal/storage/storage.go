package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	// 纯 Go 的 SQLite 驱动，注册为 "sqlite"，供本地运行和测试使用
	_ "modernc.org/sqlite"
)

// SeenUpdate 已经通知过的公告，title 唯一；写入后不再修改
type SeenUpdate struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Title  string    `gorm:"type:text;not null;uniqueIndex" json:"title"`
	Link   string    `gorm:"type:text" json:"link"`
	SeenAt time.Time `gorm:"not null;index" json:"seenAt"`
}

func (SeenUpdate) TableName() string {
	return "seen_updates"
}

// StoreError 包装所有数据库 / 连接错误，调用方视为本轮致命错误
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

const (
	listCachePrefix  = "seen:list:"
	listCacheTTL     = time.Minute
	defaultListLimit = 20
	maxListLimit     = 1000
)

// NewStore 打开连接池；dsn 以 sqlite:// 或 file: 开头时使用 SQLite，否则按 PostgreSQL 处理。
// redisAddr 为空时不启用缓存。
func NewStore(dsn, redisAddr string) (*Store, error) {
	dialector, isSQLite := openDialector(dsn)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if isSQLite {
		// SQLite 只适合单写者
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	s := &Store{DB: db}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", redisAddr).Msg("redis ping failed")
		}
		s.Redis = rdb
	}

	return s, nil
}

func openDialector(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: strings.TrimPrefix(dsn, "sqlite://")}), true
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), true
	default:
		return postgres.Open(dsn), false
	}
}

// Close 释放连接池与 Redis 客户端
func (s *Store) Close() error {
	var errs []error
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return &StoreError{Op: "close", Err: err}
	}
	return nil
}

// EnsureSchema 表不存在时创建；每次运行都可以安全调用。
// 已存在的 seen_updates（包括旧版本建的表）原样保留，不做任何列或索引变更
func (s *Store) EnsureSchema() error {
	m := s.DB.Migrator()
	if m.HasTable(&SeenUpdate{}) {
		return nil
	}
	if err := m.CreateTable(&SeenUpdate{}); err != nil {
		return &StoreError{Op: "ensure_schema", Err: err}
	}
	return nil
}

// HasSeen 标题完全匹配才算见过
func (s *Store) HasSeen(title string) (bool, error) {
	var n int64
	if err := s.DB.Model(&SeenUpdate{}).Where("title = ?", title).Count(&n).Error; err != nil {
		return false, &StoreError{Op: "has_seen", Err: err}
	}
	return n > 0, nil
}

// Record 记录一条已通知的公告；同名标题已存在时什么都不做
func (s *Store) Record(title, link string) error {
	rec := &SeenUpdate{
		Title:  title,
		Link:   link,
		SeenAt: time.Now().UTC(),
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return &StoreError{Op: "record", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		log.Debug().Str("title", title).Msg("record skipped, title already present")
		return nil
	}
	s.invalidateListCache()
	return nil
}

// invalidateListCache 删除所有 seen:list:* 缓存，新记录写入后列表立即可见。
// 缓存只是加速，清理失败只记日志
func (s *Store) invalidateListCache() {
	if s.Redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var keys []string
	iter := s.Redis.Scan(ctx, 0, listCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("scan list cache failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("invalidate list cache failed")
	}
}

// CountSeen 返回已记录的条数
func (s *Store) CountSeen() (int64, error) {
	var n int64
	if err := s.DB.Model(&SeenUpdate{}).Count(&n).Error; err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// ListSeen 按记录时间倒序返回最近的公告，并使用 Redis 做简单缓存
func (s *Store) ListSeen(limit int) ([]SeenUpdate, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("%s%d", listCachePrefix, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []SeenUpdate
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []SeenUpdate
	if err := s.DB.Order("seen_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	// Record 写入新行时会主动清理，TTL 兜底
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// gormWriter 把 gorm 的慢查询 / 错误日志转到 zerolog，stdout 只保留状态行
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
