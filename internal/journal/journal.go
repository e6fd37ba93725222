// Package journal 把每次交给传输的帧落到 Postgres，作为发送流水。
// 纯旁路能力：写库失败只影响流水，不影响发送链路。
package journal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SentFrame 一条发送流水
type SentFrame struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	FrameID int64     `gorm:"column:frame_id;index"`
	Payload []byte    `gorm:"type:bytea"`
	SentAt  time.Time `gorm:"index"`
}

// TableName 指定表名
func (SentFrame) TableName() string { return "sent_frames" }

// Journal 发送流水仓库
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open 连接 Postgres 并确保表结构存在
func Open(dsn string, logger *zap.Logger) (*Journal, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	if err := db.AutoMigrate(&SentFrame{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Record 写入一条发送流水
func (j *Journal) Record(ctx context.Context, frameID uint32, payload []byte, at time.Time) error {
	p := make([]byte, len(payload))
	copy(p, payload)
	rec := SentFrame{FrameID: int64(frameID), Payload: p, SentAt: at}
	return j.db.WithContext(ctx).Create(&rec).Error
}

// Recent 按时间倒序取最近 limit 条流水（诊断用）
func (j *Journal) Recent(ctx context.Context, limit int) ([]SentFrame, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []SentFrame
	err := j.db.WithContext(ctx).Order("sent_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Close 关闭底层连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
