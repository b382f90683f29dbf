package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/levelup/internal/db"
	"gorm.io/gorm"
)

const maxGoalTitleLength = 150

var (
	// ErrGoalNotFound 用户尚未设置主目标
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalInvalidInput 目标字段不合法
	ErrGoalInvalidInput = errors.New("invalid goal input")
)

// GoalService 维护每个用户的主目标与子目标
type GoalService struct {
	db *gorm.DB
}

// SubGoalInput 为子目标的可配置字段
type SubGoalInput struct {
	Title       string
	Description string
	Completed   bool
}

// GoalInput 为保存主目标时提交的完整内容，子目标整体替换
type GoalInput struct {
	Title       string
	Description string
	Completed   bool
	SubGoals    []SubGoalInput
}

// GoalView 附带子目标完成进度
type GoalView struct {
	Goal              db.Goal
	CompletedSubGoals int
	Percentage        float64
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// Get 返回用户的主目标
func (s *GoalService) Get(userID uint) (*GoalView, error) {
	if _, err := loadUser(s.db, userID); err != nil {
		return nil, err
	}
	goal, err := loadGoal(s.db, userID)
	if err != nil {
		return nil, err
	}
	return newGoalView(*goal), nil
}

// Save 创建或覆盖用户的主目标。所有子目标完成时主目标自动视为完成
func (s *GoalService) Save(userID uint, input GoalInput) (*GoalView, error) {
	title := sanitizePlain(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrGoalInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxGoalTitleLength {
		return nil, fmt.Errorf("%w: title must not exceed %d characters", ErrGoalInvalidInput, maxGoalTitleLength)
	}

	subGoals := make([]db.SubGoal, 0, len(input.SubGoals))
	allDone := len(input.SubGoals) > 0
	for i, item := range input.SubGoals {
		subTitle := sanitizePlain(item.Title)
		if subTitle == "" {
			return nil, fmt.Errorf("%w: sub goal #%d has no title", ErrGoalInvalidInput, i+1)
		}
		if utf8.RuneCountInString(subTitle) > maxGoalTitleLength {
			return nil, fmt.Errorf("%w: sub goal #%d title is too long", ErrGoalInvalidInput, i+1)
		}
		subGoals = append(subGoals, db.SubGoal{
			Title:       subTitle,
			Description: sanitizePlain(item.Description),
			Completed:   item.Completed,
			Position:    i,
		})
		allDone = allDone && item.Completed
	}

	var saved *db.Goal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}

		goal, err := loadGoal(tx, userID)
		switch {
		case errors.Is(err, ErrGoalNotFound):
			goal = &db.Goal{UserID: userID}
		case err != nil:
			return err
		}
		goal.Title = title
		goal.Description = sanitizePlain(input.Description)
		goal.Completed = input.Completed || allDone

		if err := tx.Omit("SubGoals").Save(goal).Error; err != nil {
			return fmt.Errorf("save goal: %w", err)
		}
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&db.SubGoal{}).Error; err != nil {
			return fmt.Errorf("replace sub goals: %w", err)
		}
		for i := range subGoals {
			subGoals[i].GoalID = goal.ID
		}
		if len(subGoals) > 0 {
			if err := tx.Create(&subGoals).Error; err != nil {
				return fmt.Errorf("create sub goals: %w", err)
			}
		}

		saved, err = loadGoal(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newGoalView(*saved), nil
}

func loadGoal(tx *gorm.DB, userID uint) (*db.Goal, error) {
	var goal db.Goal
	err := tx.Preload("SubGoals", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	}).Where("user_id = ?", userID).First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

func newGoalView(goal db.Goal) *GoalView {
	view := &GoalView{Goal: goal}
	for _, sub := range goal.SubGoals {
		if sub.Completed {
			view.CompletedSubGoals++
		}
	}
	if goal.Completed {
		view.Percentage = 100
		return view
	}
	view.Percentage = completionPercentage(view.CompletedSubGoals, len(goal.SubGoals))
	return view
}
