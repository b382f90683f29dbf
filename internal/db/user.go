package db

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了用户模型
// Level 始终由 Experience 推导，只作为冗余列方便查询
// LastActivityDate 存储为日历日期（UTC 零点）
type User struct {
	gorm.Model
	Username         string `gorm:"unique;not null"`
	Experience       int    `gorm:"not null;default:0"`
	Level            int    `gorm:"not null;default:1"`
	CurrentStreak    int    `gorm:"not null;default:0"`
	MaxStreak        int    `gorm:"not null;default:0"`
	LastActivityDate *time.Time
}

// AttributeBalance 记录用户在单个类别上的属性值
// user_id + category 唯一，首次变动时创建
type AttributeBalance struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index:idx_attribute_balance_unique,unique"`
	Category  string `gorm:"size:32;not null;index:idx_attribute_balance_unique,unique"`
	Value     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定自定义表名。
func (AttributeBalance) TableName() string {
	return "attribute_balances"
}
