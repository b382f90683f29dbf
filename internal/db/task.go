package db

import (
	"time"

	"gorm.io/gorm"
)

// Task 为任务记录，对引擎而言只读
// RewardExpression 形如 "+3 Discipline, -2 Stress"
// UserID 为 0 时表示公共任务，所有用户可见
type Task struct {
	gorm.Model
	UserID           uint `gorm:"index"`
	Title            string
	Tip              string `gorm:"type:text"`
	Category         string `gorm:"size:32"`
	Difficulty       int    `gorm:"not null;default:1"`
	RewardPoints     int    `gorm:"not null;default:10"`
	IsTimeLimited    bool
	RewardExpression string
	Deadline         *time.Time
}
