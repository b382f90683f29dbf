package service

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/levelup/internal/db"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRewardInvalidInput 奖励目录内容不合法
var ErrRewardInvalidInput = errors.New("invalid reward input")

// RewardCatalogEntry 对应目录文件中的一条奖励
type RewardCatalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	UnlockLevel int    `yaml:"unlock_level"`
	ImageURL    string `yaml:"image_url"`
}

// RewardCatalog 为 YAML 目录文件的根结构
type RewardCatalog struct {
	Rewards []RewardCatalogEntry `yaml:"rewards"`
}

// RewardService 维护奖励目录并在升级时解锁奖励
type RewardService struct {
	db *gorm.DB
}

// NewRewardService 构造 RewardService
func NewRewardService(gdb *gorm.DB) *RewardService {
	return &RewardService{db: gdb}
}

// ParseCatalog 解析 YAML 目录
func ParseCatalog(data []byte) (RewardCatalog, error) {
	var catalog RewardCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return RewardCatalog{}, fmt.Errorf("%w: %v", ErrRewardInvalidInput, err)
	}
	for i, entry := range catalog.Rewards {
		if strings.TrimSpace(entry.Name) == "" {
			return RewardCatalog{}, fmt.Errorf("%w: reward #%d has no name", ErrRewardInvalidInput, i+1)
		}
		if entry.UnlockLevel < 1 {
			return RewardCatalog{}, fmt.Errorf("%w: reward %q unlock_level must be >= 1", ErrRewardInvalidInput, entry.Name)
		}
	}
	return catalog, nil
}

// LoadCatalog 读取目录文件并导入，返回导入条数
func (s *RewardService) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read reward catalog: %w", err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	return s.Import(catalog.Rewards)
}

// Import 按名称 upsert 奖励
func (s *RewardService) Import(entries []RewardCatalogEntry) (int, error) {
	imported := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			reward := db.Reward{
				Name:        strings.TrimSpace(entry.Name),
				Description: strings.TrimSpace(entry.Description),
				UnlockLevel: entry.UnlockLevel,
				ImageURL:    strings.TrimSpace(entry.ImageURL),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"description", "unlock_level", "image_url", "updated_at"}),
			}).Create(&reward).Error; err != nil {
				return fmt.Errorf("upsert reward %q: %w", reward.Name, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

// List 返回全部奖励，按解锁等级排序
func (s *RewardService) List() ([]db.Reward, error) {
	var rewards []db.Reward
	if err := s.db.Order("unlock_level ASC, name ASC").Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// ListForUser 返回用户已解锁的奖励
func (s *RewardService) ListForUser(userID uint) ([]db.UserReward, error) {
	if _, err := loadUser(s.db, userID); err != nil {
		return nil, err
	}

	var unlocked []db.UserReward
	if err := s.db.Preload("Reward").
		Where("user_id = ?", userID).
		Order("unlocked_at ASC, id ASC").
		Find(&unlocked).Error; err != nil {
		return nil, fmt.Errorf("list user rewards: %w", err)
	}
	return unlocked, nil
}

// unlockForLevel 在事务内解锁所有 unlock_level <= level 且尚未解锁的奖励。
// 已解锁的奖励不会因取消完成而收回。
func unlockForLevel(tx *gorm.DB, userID uint, level int, now time.Time) ([]db.Reward, error) {
	var candidates []db.Reward
	if err := tx.Where("unlock_level <= ?", level).
		Where("id NOT IN (?)", tx.Model(&db.UserReward{}).Select("reward_id").Where("user_id = ?", userID)).
		Order("unlock_level ASC, name ASC").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("find unlockable rewards: %w", err)
	}

	unlocked := make([]db.Reward, 0, len(candidates))
	for _, reward := range candidates {
		entry := db.UserReward{UserID: userID, RewardID: reward.ID, UnlockedAt: now}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Reward").Create(&entry)
		if result.Error != nil {
			return nil, fmt.Errorf("unlock reward %d: %w", reward.ID, result.Error)
		}
		if result.RowsAffected == 1 {
			unlocked = append(unlocked, reward)
		}
	}
	return unlocked, nil
}
