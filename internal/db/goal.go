package db

import "gorm.io/gorm"

// Goal 为用户的主目标，每个用户最多一个
type Goal struct {
	gorm.Model
	UserID      uint      `gorm:"not null;uniqueIndex"`
	Title       string    `gorm:"size:150;not null"`
	Description string    `gorm:"type:text"`
	Completed   bool      `gorm:"not null"`
	SubGoals    []SubGoal `gorm:"constraint:OnDelete:CASCADE"`
}

// SubGoal 为主目标下的子目标，按 Position 排序
type SubGoal struct {
	ID          uint   `gorm:"primaryKey"`
	GoalID      uint   `gorm:"not null;index"`
	Title       string `gorm:"size:150;not null"`
	Description string `gorm:"type:text"`
	Completed   bool   `gorm:"not null"`
	Position    int    `gorm:"not null"`
}
