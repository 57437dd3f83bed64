package storage

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"cdpdriver/internal/logger"
	"cdpdriver/internal/network"
)

// TrafficRecord 一条已完结请求的落库记录
type TrafficRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	RequestID    string `gorm:"index"`
	URL          string
	Method       string
	ResourceType string
	Status       int
	Failure      string
	FromCache    bool
	RedirectHops int
	CreatedAt    time.Time
}

// TrafficRecorder 基于 sqlite 的流量记录器，实现 network.Recorder
type TrafficRecorder struct {
	db  *gorm.DB
	log logger.Logger
}

// Options 记录器初始化选项
type Options struct {
	Dsn    string // sqlite DSN，如 db.sqlite3 或 file::memory:
	Prefix string // 表名前缀
}

// NewTrafficRecorder 打开数据库并迁移表结构
func NewTrafficRecorder(opts Options, l logger.Logger) (*TrafficRecorder, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(opts.Dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TrafficRecord{}); err != nil {
		return nil, err
	}
	return &TrafficRecorder{db: db, log: l}, nil
}

// Record 写入一条终态请求记录
func (r *TrafficRecorder) Record(info network.RecordInfo) error {
	rec := TrafficRecord{
		ID:           uuid.NewString(),
		RequestID:    info.RequestID,
		URL:          info.URL,
		Method:       info.Method,
		ResourceType: info.ResourceType,
		Status:       info.Status,
		Failure:      info.Failure,
		FromCache:    info.FromCache,
		RedirectHops: info.RedirectHops,
	}
	return r.db.Create(&rec).Error
}

// Recent 查询最近 n 条记录，最新在前
func (r *TrafficRecorder) Recent(n int) ([]TrafficRecord, error) {
	var out []TrafficRecord
	err := r.db.Order("created_at desc").Limit(n).Find(&out).Error
	return out, err
}
