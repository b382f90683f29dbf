package service

import (
	"fmt"
	"math"
	"time"

	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
	"gorm.io/gorm"
)

const weekDays = 7

// StatsService 汇总完成记录的区间统计
type StatsService struct {
	db *gorm.DB
}

// DailyCompletion 表示单日的完成次数与获得经验
type DailyCompletion struct {
	Day        time.Time
	Completed  int
	Experience int
}

// WeeklyStats 为截至 today 的 7 天统计
type WeeklyStats struct {
	RangeStart           time.Time
	RangeEnd             time.Time
	Days                 []DailyCompletion
	TotalCompleted       int
	TotalExperience      int
	TaskCount            int
	CompletionPercentage float64
	CurrentStreak        int
}

// NewStatsService 构造 StatsService
func NewStatsService(gdb *gorm.DB) *StatsService {
	return &StatsService{db: gdb}
}

// Weekly 返回截至 today（含）最近 7 天的完成统计
func (s *StatsService) Weekly(userID uint, today time.Time) (*WeeklyStats, error) {
	user, err := loadUser(s.db, userID)
	if err != nil {
		return nil, err
	}

	end := gamification.CalendarDay(today)
	start := end.AddDate(0, 0, -(weekDays - 1))

	var events []db.CompletionEvent
	if err := s.db.Where("user_id = ?", userID).
		Where("day BETWEEN ? AND ?", start, end).
		Order("day ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list completion events: %w", err)
	}

	var taskCount int64
	if err := s.db.Model(&db.Task{}).
		Where("user_id = ? OR user_id = 0", userID).
		Count(&taskCount).Error; err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	stats := &WeeklyStats{
		RangeStart:    start,
		RangeEnd:      end,
		Days:          make([]DailyCompletion, weekDays),
		TaskCount:     int(taskCount),
		CurrentStreak: user.CurrentStreak,
	}
	for i := range stats.Days {
		stats.Days[i].Day = start.AddDate(0, 0, i)
	}

	for _, event := range events {
		idx := daysBetween(start, gamification.CalendarDay(event.Day))
		if idx < 0 || idx >= weekDays {
			continue
		}
		stats.Days[idx].Completed++
		stats.Days[idx].Experience += event.EarnedExperience
		stats.TotalCompleted++
		stats.TotalExperience += event.EarnedExperience
	}

	stats.CompletionPercentage = completionPercentage(stats.TotalCompleted, stats.TaskCount*weekDays)
	return stats, nil
}

func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// completionPercentage 保留一位小数，target 为 0 时返回 0
func completionPercentage(completed, target int) float64 {
	if target <= 0 {
		return 0
	}
	pct := float64(completed) / float64(target) * 100
	return math.Round(pct*10) / 10
}
