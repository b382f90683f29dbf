package service

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 在指定用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists 用户名已被占用
	ErrUserExists = errors.New("user already exists")
	// ErrUserInvalidInput 用户名为空等输入问题
	ErrUserInvalidInput = errors.New("invalid user input")
)

// UserService 负责用户档案的读取与显式创建
// Get 不会自动创建用户，需要创建时调用 Create 或 GetOrCreate
type UserService struct {
	db *gorm.DB
}

// AttributeValue 为展示用的属性值
type AttributeValue struct {
	Category gamification.Category
	Value    int
	Max      int
}

// UserStats 汇总等级、属性与连胜
type UserStats struct {
	User       db.User
	Progress   gamification.Progress
	Attributes []AttributeValue
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Get 根据 ID 获取用户
func (s *UserService) Get(id uint) (*db.User, error) {
	return loadUser(s.db, id)
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(username string) (*db.User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, ErrUserInvalidInput
	}

	var user db.User
	if err := s.db.Where("username = ?", name).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Create 新建用户，初始等级为 1
func (s *UserService) Create(username string) (*db.User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", ErrUserInvalidInput)
	}

	if _, err := s.GetByUsername(name); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user := db.User{Username: name, Level: 1}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// GetOrCreate 调用方显式选择“不存在即创建”
func (s *UserService) GetOrCreate(username string) (*db.User, bool, error) {
	user, err := s.GetByUsername(username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = s.Create(username)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Stats 返回用户等级进度和全部已知属性（未出现的属性记为 0）
func (s *UserService) Stats(id uint) (*UserStats, error) {
	user, err := loadUser(s.db, id)
	if err != nil {
		return nil, err
	}

	ledger, err := loadLedger(s.db, user.ID)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		User:     *user,
		Progress: gamification.LevelProgress(user.Experience),
	}

	seen := make(map[gamification.Category]struct{})
	for _, category := range gamification.KnownCategories() {
		_, hi := gamification.Bound(category)
		stats.Attributes = append(stats.Attributes, AttributeValue{Category: category, Value: ledger.Get(category), Max: hi})
		seen[category] = struct{}{}
	}
	for category, value := range ledger {
		if _, ok := seen[category]; ok {
			continue
		}
		_, hi := gamification.Bound(category)
		stats.Attributes = append(stats.Attributes, AttributeValue{Category: category, Value: value, Max: hi})
	}
	sortExtraAttributes(stats.Attributes, len(gamification.KnownCategories()))

	return stats, nil
}

// RecomputeLevels 将负经验修正为 0，并按经验重新推导等级，返回被修正的用户数
func (s *UserService) RecomputeLevels() (int, error) {
	var users []db.User
	if err := s.db.Find(&users).Error; err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	fixed := 0
	for i := range users {
		user := users[i]
		experience := user.Experience
		if experience < 0 {
			experience = 0
		}
		level := gamification.LevelForExp(experience)
		if experience == user.Experience && level == user.Level {
			continue
		}
		if err := s.db.Model(&db.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"experience": experience, "level": level}).Error; err != nil {
			return fixed, fmt.Errorf("update user %d: %w", user.ID, err)
		}
		fixed++
	}
	return fixed, nil
}

func loadUser(tx *gorm.DB, id uint) (*db.User, error) {
	var user db.User
	if err := tx.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func loadLedger(tx *gorm.DB, userID uint) (gamification.Ledger, error) {
	var balances []db.AttributeBalance
	if err := tx.Where("user_id = ?", userID).Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("list attribute balances: %w", err)
	}

	ledger := make(gamification.Ledger, len(balances))
	for _, balance := range balances {
		ledger[gamification.Category(balance.Category)] = balance.Value
	}
	return ledger, nil
}

func sortExtraAttributes(items []AttributeValue, fixed int) {
	if fixed >= len(items) {
		return
	}
	slices.SortFunc(items[fixed:], func(a, b AttributeValue) int {
		return cmp.Compare(a.Category, b.Category)
	})
}
