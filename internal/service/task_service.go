package service

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 在指定任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskInvalidInput 任务字段不合法
	ErrTaskInvalidInput = errors.New("invalid task input")
)

var (
	tipMarkdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
	tipPolicy   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// TaskService 是任务记录的直通存储
// 任务内容的生成策略不在这里，调用方提供完整字段

type TaskService struct {
	db *gorm.DB
}

// TaskInput 定义创建任务时可配置字段
type TaskInput struct {
	UserID           uint
	Title            string
	Tip              string
	Category         string
	Difficulty       int
	RewardPoints     int
	IsTimeLimited    bool
	RewardExpression string
	Deadline         *time.Time
}

// TaskView 附带当天是否已完成
type TaskView struct {
	Task           db.Task
	CompletedToday bool
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB) *TaskService {
	return &TaskService{db: gdb}
}

// Create 新建任务；未填写奖励描述时按类别与难度生成默认描述
func (s *TaskService) Create(input TaskInput) (*db.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	rewardPoints := input.RewardPoints
	if rewardPoints == 0 {
		rewardPoints = 10
	}

	task := db.Task{
		UserID:           input.UserID,
		Title:            sanitizePlain(input.Title),
		Tip:              sanitizePlain(input.Tip),
		Category:         string(gamification.NormalizeCategory(input.Category)),
		Difficulty:       input.Difficulty,
		RewardPoints:     rewardPoints,
		IsTimeLimited:    input.IsTimeLimited,
		RewardExpression: strings.TrimSpace(input.RewardExpression),
		Deadline:         input.Deadline,
	}
	if task.RewardExpression == "" {
		task.RewardExpression = gamification.FormatReward(TaskSpecFrom(task))
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// Get 根据 ID 获取任务
func (s *TaskService) Get(id uint) (*db.Task, error) {
	return loadTask(s.db, id)
}

// ListForUser 返回用户可见的任务（自己的与公共的），并标记 day 当天是否已完成
func (s *TaskService) ListForUser(userID uint, day time.Time) ([]TaskView, error) {
	var tasks []db.Task
	if err := s.db.Where("user_id = ? OR user_id = 0", userID).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var completedIDs []uint
	if err := s.db.Model(&db.CompletionEvent{}).
		Where("user_id = ? AND day = ?", userID, gamification.CalendarDay(day)).
		Pluck("task_id", &completedIDs).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	done := make(map[uint]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		done[id] = struct{}{}
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		_, ok := done[task.ID]
		views = append(views, TaskView{Task: task, CompletedToday: ok})
	}
	return views, nil
}

// RenderTip 将任务提示按 Markdown 渲染为安全的 HTML
func RenderTip(tip string) string {
	trimmed := strings.TrimSpace(tip)
	if trimmed == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := tipMarkdown.Convert([]byte(trimmed), &buf); err != nil {
		return html.EscapeString(trimmed)
	}
	return strings.TrimSpace(string(tipPolicy.SanitizeBytes(buf.Bytes())))
}

// TaskSpecFrom 将存储的任务转换为引擎使用的只读结构
func TaskSpecFrom(task db.Task) gamification.TaskSpec {
	return gamification.TaskSpec{
		RewardPoints:     task.RewardPoints,
		Difficulty:       task.Difficulty,
		PrimaryCategory:  gamification.NormalizeCategory(task.Category),
		IsTimeLimited:    task.IsTimeLimited,
		RewardExpression: task.RewardExpression,
	}
}

// BaseExperience 返回完成该任务可获得的经验
func BaseExperience(task db.Task) int {
	return gamification.BaseExp(TaskSpecFrom(task))
}

func loadTask(tx *gorm.DB, id uint) (*db.Task, error) {
	var task db.Task
	if err := tx.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// loadTaskForUser 只返回用户可见的任务（自己的或公共的），其他用户的私有任务视为不存在
func loadTaskForUser(tx *gorm.DB, taskID, userID uint) (*db.Task, error) {
	task, err := loadTask(tx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != 0 && task.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func validateTaskInput(input TaskInput) error {
	if sanitizePlain(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrTaskInvalidInput)
	}
	if input.Difficulty <= 0 {
		return fmt.Errorf("%w: difficulty must be positive", ErrTaskInvalidInput)
	}
	if input.Difficulty > gamification.MaxDifficulty {
		return fmt.Errorf("%w: difficulty must not exceed %d", ErrTaskInvalidInput, gamification.MaxDifficulty)
	}
	if input.RewardPoints < 0 {
		return fmt.Errorf("%w: reward points must be positive", ErrTaskInvalidInput)
	}
	if strings.TrimSpace(input.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrTaskInvalidInput)
	}
	return nil
}

// sanitizePlain 去掉所有 HTML，只保留文本
func sanitizePlain(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(value)))
}
