package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
	"github.com/levelup/internal/logging"
	"github.com/levelup/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConcurrentCompletion 唯一索引拦截了同一 (user, task, day) 的重复完成
var ErrConcurrentCompletion = errors.New("completion already recorded for this day")

// ProgressService 负责在单个事务内完成/取消完成任务
// 完成记录的创建/删除、用户经验与连胜、属性值、奖励解锁要么全部写入，要么全部回滚
type ProgressService struct {
	db     *gorm.DB
	engine *gamification.Engine
	log    logrus.FieldLogger
	clock  dayClock
}

// CompletionResult 为完成接口的返回
// Action 为 uncompleted 时表示本次调用按切换语义撤销了当天的完成
type CompletionResult struct {
	Success          bool
	AlreadyCompleted bool
	Action           gamification.Action
	LeveledUp        bool
	OldLevel         int
	NewLevel         int
	NewExperience    int
	ExperienceDelta  int
	CurrentStreak    int
	MaxStreak        int
	Deltas           []gamification.Delta
	UnlockedRewards  []db.Reward
	EventID          string
}

// UncompleteResult 为取消完成接口的返回
type UncompleteResult struct {
	Success       bool
	NewExperience int
	NewLevel      int
	CurrentStreak int
}

// CheckInResult 为会话边界的连胜检查结果
type CheckInResult struct {
	Reset            bool
	CurrentStreak    int
	MaxStreak        int
	LastActivityDate *time.Time
}

// NewProgressService 构造 ProgressService，log 为空时丢弃日志
func NewProgressService(gdb *gorm.DB, log logrus.FieldLogger) *ProgressService {
	if log == nil {
		log = logging.Discard()
	}
	return &ProgressService{
		db:     gdb,
		engine: gamification.NewEngine(),
		log:    log,
		clock:  newDayClock(),
	}
}

// WithClock 允许在测试中固定当前时间
func (s *ProgressService) WithClock(now func() time.Time) *ProgressService {
	if now != nil {
		s.clock.now = now
	}
	return s
}

// WithLocation 指定用于划分日历日的时区
func (s *ProgressService) WithLocation(loc *time.Location) *ProgressService {
	if loc != nil {
		s.clock.loc = loc
	}
	return s
}

// Today 返回当前日历日
func (s *ProgressService) Today() time.Time {
	return s.clock.today()
}

// Complete 完成任务；若当天已完成则撤销（切换语义）
func (s *ProgressService) Complete(userID, taskID uint) (*CompletionResult, error) {
	today := s.Today()
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID, "day": today.Format(time.DateOnly)})

	var (
		result      *CompletionResult
		diagnostics []gamification.Diagnostic
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		task, err := loadTaskForUser(tx, taskID, userID)
		if err != nil {
			return err
		}
		existing, err := findCompletionEvent(tx, userID, taskID, today)
		if err != nil {
			return err
		}
		state, err := loadUserState(tx, user)
		if err != nil {
			return err
		}

		out, err := s.engine.Complete(state, TaskSpecFrom(*task), existing.record(), today)
		if err != nil {
			return fmt.Errorf("complete task %d: %w", taskID, err)
		}
		diagnostics = out.Diagnostics

		result = &CompletionResult{
			Success:         true,
			Action:          out.Action,
			LeveledUp:       out.LeveledUp,
			OldLevel:        out.OldLevel,
			NewLevel:        out.NewLevel,
			NewExperience:   out.User.Experience,
			ExperienceDelta: out.Experience,
			CurrentStreak:   out.User.Streak.Current,
			MaxStreak:       out.User.Streak.Max,
			Deltas:          out.Deltas,
		}

		switch out.Action {
		case gamification.ActionCompleted:
			event := &db.CompletionEvent{
				PublicID:         uuid.NewString(),
				UserID:           userID,
				TaskID:           taskID,
				Day:              out.Record.Day,
				EarnedExperience: out.Record.EarnedExperience,
				AppliedDeltas:    out.Record.AppliedDeltas,
			}
			if err := createCompletionEvent(tx, event); err != nil {
				return err
			}
			result.EventID = event.PublicID
		case gamification.ActionUncompleted:
			if err := deleteCompletionEvent(tx, existing.ID); err != nil {
				return err
			}
			result.EventID = existing.PublicID
		}

		if err := saveUserState(tx, user.ID, out); err != nil {
			return err
		}

		if out.LeveledUp {
			unlocked, err := unlockForLevel(tx, user.ID, out.NewLevel, s.clock.now())
			if err != nil {
				return err
			}
			result.UnlockedRewards = unlocked
		}
		return nil
	})

	logSkippedClauses(entry, diagnostics)

	if errors.Is(err, ErrConcurrentCompletion) {
		metrics.RecordCompletionConflict()
		entry.Info("completion already recorded by a concurrent request")
		return s.alreadyCompleted(userID)
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordCompletion(string(result.Action), result.LeveledUp)
	entry.WithFields(logrus.Fields{
		"action":     result.Action,
		"experience": result.NewExperience,
		"level":      result.NewLevel,
		"streak":     result.CurrentStreak,
	}).Info("task completion toggled")
	if result.LeveledUp {
		entry.WithFields(logrus.Fields{"old_level": result.OldLevel, "new_level": result.NewLevel}).Info("user leveled up")
	}

	return result, nil
}

// Uncomplete 撤销当天的完成；当天没有完成记录时为无操作，Success=false
func (s *ProgressService) Uncomplete(userID, taskID uint) (*UncompleteResult, error) {
	today := s.Today()
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID, "day": today.Format(time.DateOnly)})

	var (
		result      *UncompleteResult
		diagnostics []gamification.Diagnostic
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		task, err := loadTaskForUser(tx, taskID, userID)
		if err != nil {
			return err
		}
		existing, err := findCompletionEvent(tx, userID, taskID, today)
		if err != nil {
			return err
		}
		state, err := loadUserState(tx, user)
		if err != nil {
			return err
		}

		out, err := s.engine.Uncomplete(state, TaskSpecFrom(*task), existing.record(), today)
		if errors.Is(err, gamification.ErrNotCompleted) {
			result = &UncompleteResult{
				NewExperience: user.Experience,
				NewLevel:      gamification.LevelForExp(user.Experience),
				CurrentStreak: user.CurrentStreak,
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("uncomplete task %d: %w", taskID, err)
		}
		diagnostics = out.Diagnostics

		if err := deleteCompletionEvent(tx, existing.ID); err != nil {
			return err
		}
		if err := saveUserState(tx, user.ID, out); err != nil {
			return err
		}

		result = &UncompleteResult{
			Success:       true,
			NewExperience: out.User.Experience,
			NewLevel:      out.NewLevel,
			CurrentStreak: out.User.Streak.Current,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logSkippedClauses(entry, diagnostics)
	if result.Success {
		metrics.RecordCompletion(string(gamification.ActionUncompleted), false)
		entry.WithFields(logrus.Fields{"experience": result.NewExperience, "level": result.NewLevel}).Info("task uncompleted")
	} else {
		entry.Debug("uncomplete ignored, task not completed today")
	}
	return result, nil
}

// CheckIn 在会话/登录边界检查连胜，超过一天未活动则清零
func (s *ProgressService) CheckIn(userID uint) (*CheckInResult, error) {
	today := s.Today()
	var result *CheckInResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}

		next, reset := gamification.CheckAndResetIfInactive(streakOf(user), today)
		if reset {
			if err := tx.Model(&db.User{}).Where("id = ?", user.ID).
				Update("current_streak", next.Current).Error; err != nil {
				return fmt.Errorf("reset streak: %w", err)
			}
		}

		result = &CheckInResult{
			Reset:            reset,
			CurrentStreak:    next.Current,
			MaxStreak:        next.Max,
			LastActivityDate: next.LastActivity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Reset {
		metrics.RecordStreakReset("checkin", 1)
		s.log.WithField("user_id", userID).Info("streak reset after inactivity")
	}
	return result, nil
}

// SweepInactive 对所有用户执行不活跃检查，返回被清零的用户数。
// 扫描与清零在同一事务内，清零时再次校验最后活动日期，扫描之后刚完成任务的用户不会被误清零。
func (s *ProgressService) SweepInactive() (int, error) {
	today := s.Today()
	yesterday := gamification.CalendarDay(today).AddDate(0, 0, -1)
	reset := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		candidates := make([]uint, 0)
		var batch []db.User
		scan := tx.Where("current_streak > 0").FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				if _, inactive := gamification.CheckAndResetIfInactive(streakOf(&batch[i]), today); inactive {
					candidates = append(candidates, batch[i].ID)
				}
			}
			return nil
		})
		if scan.Error != nil {
			return fmt.Errorf("scan streaks: %w", scan.Error)
		}
		if len(candidates) == 0 {
			return nil
		}

		update := tx.Model(&db.User{}).
			Where("id IN ? AND current_streak > 0 AND last_activity_date < ?", candidates, yesterday).
			Update("current_streak", 0)
		if update.Error != nil {
			return fmt.Errorf("reset streaks: %w", update.Error)
		}
		reset = int(update.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordStreakReset("sweep", reset)
	s.log.WithFields(logrus.Fields{"reset": reset, "day": today.Format(time.DateOnly)}).Info("inactive streak sweep finished")
	return reset, nil
}

// LevelProgress 返回用户在当前等级内的进度
func (s *ProgressService) LevelProgress(userID uint) (gamification.Progress, error) {
	user, err := loadUser(s.db, userID)
	if err != nil {
		return gamification.Progress{}, err
	}
	return gamification.LevelProgress(user.Experience), nil
}

func (s *ProgressService) alreadyCompleted(userID uint) (*CompletionResult, error) {
	user, err := loadUser(s.db, userID)
	if err != nil {
		return nil, err
	}
	level := gamification.LevelForExp(user.Experience)
	return &CompletionResult{
		Success:          true,
		AlreadyCompleted: true,
		Action:           gamification.ActionCompleted,
		OldLevel:         level,
		NewLevel:         level,
		NewExperience:    user.Experience,
		CurrentStreak:    user.CurrentStreak,
		MaxStreak:        user.MaxStreak,
	}, nil
}

type completionRow struct {
	db.CompletionEvent
}

func (r *completionRow) record() *gamification.CompletionRecord {
	if r == nil {
		return nil
	}
	return &gamification.CompletionRecord{
		Day:              r.Day,
		EarnedExperience: r.EarnedExperience,
		AppliedDeltas:    r.AppliedDeltas,
	}
}

func findCompletionEvent(tx *gorm.DB, userID, taskID uint, day time.Time) (*completionRow, error) {
	var event db.CompletionEvent
	err := tx.Where("user_id = ? AND task_id = ? AND day = ?", userID, taskID, gamification.CalendarDay(day)).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completion event: %w", err)
	}
	return &completionRow{CompletionEvent: event}, nil
}

// createCompletionEvent 依赖唯一索引；插入被忽略时返回 ErrConcurrentCompletion
func createCompletionEvent(tx *gorm.DB, event *db.CompletionEvent) error {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return fmt.Errorf("create completion event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentCompletion
	}
	return nil
}

func deleteCompletionEvent(tx *gorm.DB, id uint) error {
	if err := tx.Delete(&db.CompletionEvent{}, id).Error; err != nil {
		return fmt.Errorf("delete completion event: %w", err)
	}
	return nil
}

func streakOf(user *db.User) gamification.StreakState {
	return gamification.StreakState{
		Current:      user.CurrentStreak,
		Max:          user.MaxStreak,
		LastActivity: user.LastActivityDate,
	}
}

func loadUserState(tx *gorm.DB, user *db.User) (gamification.UserState, error) {
	ledger, err := loadLedger(tx, user.ID)
	if err != nil {
		return gamification.UserState{}, err
	}
	return gamification.UserState{
		Experience: user.Experience,
		Level:      user.Level,
		Streak:     streakOf(user),
		Attributes: ledger,
	}, nil
}

func saveUserState(tx *gorm.DB, userID uint, out gamification.Outcome) error {
	next := out.User
	if err := tx.Model(&db.User{}).Where("id = ?", userID).Updates(map[string]any{
		"experience":         next.Experience,
		"level":              next.Level,
		"current_streak":     next.Streak.Current,
		"max_streak":         next.Streak.Max,
		"last_activity_date": next.Streak.LastActivity,
	}).Error; err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	for _, category := range out.Touched {
		balance := db.AttributeBalance{
			UserID:   userID,
			Category: string(category),
			Value:    next.Attributes.Get(category),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&balance).Error; err != nil {
			return fmt.Errorf("upsert attribute %s: %w", category, err)
		}
	}
	return nil
}

func logSkippedClauses(entry logrus.FieldLogger, diagnostics []gamification.Diagnostic) {
	if len(diagnostics) == 0 {
		return
	}
	metrics.RecordSkippedClauses(len(diagnostics))
	for _, d := range diagnostics {
		entry.WithFields(logrus.Fields{"clause": d.Clause, "index": d.Index, "reason": d.Reason}).
			Warn("skipped malformed reward clause")
	}
}
