package db

import (
	"time"

	"github.com/levelup/internal/gamification"
)

// CompletionEvent 记录某用户某任务在某日的完成
// user_id + task_id + day 采用唯一索引，保证同一天只能存在一条；
// 取消完成时直接物理删除，因此不嵌入 gorm.Model（避免软删除）
type CompletionEvent struct {
	ID               uint      `gorm:"primaryKey"`
	PublicID         string    `gorm:"size:36;uniqueIndex"`
	UserID           uint      `gorm:"not null;index;index:idx_completion_unique,unique"`
	TaskID           uint      `gorm:"not null;index:idx_completion_unique,unique"`
	Day              time.Time `gorm:"not null;index;index:idx_completion_unique,unique"`
	EarnedExperience int
	AppliedDeltas    []gamification.Delta `gorm:"serializer:json;type:text"`
	CreatedAt        time.Time
}

// TableName 指定自定义表名。
func (CompletionEvent) TableName() string {
	return "completion_events"
}
