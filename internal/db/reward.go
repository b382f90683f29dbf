package db

import (
	"time"

	"gorm.io/gorm"
)

// Reward 为达到指定等级后解锁的奖励
type Reward struct {
	gorm.Model
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	UnlockLevel int    `gorm:"not null;default:1"`
	ImageURL    string
}

// UserReward 记录用户已解锁的奖励，同一奖励只能解锁一次
type UserReward struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"not null;index:idx_user_reward_unique,unique"`
	RewardID   uint `gorm:"not null;index:idx_user_reward_unique,unique"`
	Reward     Reward
	UnlockedAt time.Time
}

// TableName 指定自定义表名。
func (UserReward) TableName() string {
	return "user_rewards"
}
