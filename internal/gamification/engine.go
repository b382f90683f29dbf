// Package gamification 实现经验、等级、属性与连胜的纯计算规则。
// 包内不做任何 I/O，调用方负责在同一事务内持久化 Outcome。
package gamification

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNotCompleted 当天不存在完成记录却请求取消完成
	ErrNotCompleted = errors.New("task is not completed for this day")
	// ErrInvalidTask 任务难度等字段不合法
	ErrInvalidTask = errors.New("invalid task")
)

// Action 表示一次调用实际执行的状态迁移
type Action string

const (
	ActionCompleted   Action = "completed"
	ActionUncompleted Action = "uncompleted"
)

// UserState 为引擎读取和返回的用户快照
type UserState struct {
	Experience int
	Level      int
	Streak     StreakState
	Attributes Ledger
}

// Clone 深拷贝快照
func (u UserState) Clone() UserState {
	cp := u
	cp.Attributes = u.Attributes.Clone()
	if u.Streak.LastActivity != nil {
		last := *u.Streak.LastActivity
		cp.Streak.LastActivity = &last
	}
	return cp
}

// TaskSpec 为引擎使用的只读任务信息
type TaskSpec struct {
	RewardPoints     int
	Difficulty       int
	PrimaryCategory  Category
	IsTimeLimited    bool
	RewardExpression string
}

// CompletionRecord 对应 (user, task, day) 上的完成记录。
// 记录存在即视为已完成，取消完成时整条删除。
type CompletionRecord struct {
	Day              time.Time
	EarnedExperience int
	AppliedDeltas    []Delta
}

// Outcome 为一次完成/取消完成的计算结果
type Outcome struct {
	Action      Action
	User        UserState
	OldLevel    int
	NewLevel    int
	LeveledUp   bool
	Experience  int
	Deltas      []Delta
	Touched     []Category
	Record      *CompletionRecord
	Diagnostics []Diagnostic
}

// Engine 无状态，保留结构体便于以后注入曲线参数
type Engine struct{}

// NewEngine 构造 Engine
func NewEngine() *Engine {
	return &Engine{}
}

// Complete 将 (user, task, today) 置为已完成；若 existing 不为空则按取消完成处理。
func (e *Engine) Complete(user UserState, task TaskSpec, existing *CompletionRecord, today time.Time) (Outcome, error) {
	if existing != nil {
		return e.Uncomplete(user, task, existing, today)
	}
	if task.Difficulty <= 0 {
		return Outcome{}, ErrInvalidTask
	}

	next := user.Clone()
	if next.Attributes == nil {
		next.Attributes = Ledger{}
	}
	oldLevel := LevelForExp(next.Experience)

	earned := BaseExp(task)
	parsed := ParseRewardExpression(task.RewardExpression)

	if next.Experience > math.MaxInt-earned {
		next.Experience = math.MaxInt
	} else {
		next.Experience += earned
	}
	touched := next.Attributes.ApplyAll(parsed.Deltas)
	next.Level = LevelForExp(next.Experience)
	next.Streak = UpdateOnActivity(next.Streak, today)

	return Outcome{
		Action:     ActionCompleted,
		User:       next,
		OldLevel:   oldLevel,
		NewLevel:   next.Level,
		LeveledUp:  next.Level > oldLevel,
		Experience: earned,
		Deltas:     parsed.Deltas,
		Touched:    touched,
		Record: &CompletionRecord{
			Day:              CalendarDay(today),
			EarnedExperience: earned,
			AppliedDeltas:    parsed.Deltas,
		},
		Diagnostics: parsed.Diagnostics,
	}, nil
}

// Uncomplete 撤销当天的完成记录：扣除经验（最低为 0）、反向应用属性变化并重算等级。
// 连胜不会回退。
func (e *Engine) Uncomplete(user UserState, task TaskSpec, existing *CompletionRecord, today time.Time) (Outcome, error) {
	if existing == nil {
		return Outcome{}, ErrNotCompleted
	}

	next := user.Clone()
	if next.Attributes == nil {
		next.Attributes = Ledger{}
	}
	oldLevel := LevelForExp(next.Experience)

	earned := existing.EarnedExperience
	if earned <= 0 {
		earned = BaseExp(task)
	}
	applied := existing.AppliedDeltas
	var diagnostics []Diagnostic
	if applied == nil {
		parsed := ParseRewardExpression(task.RewardExpression)
		applied = parsed.Deltas
		diagnostics = parsed.Diagnostics
	}
	reversed := Negate(applied)

	next.Experience -= earned
	if next.Experience < 0 {
		next.Experience = 0
	}
	touched := next.Attributes.ApplyAll(reversed)
	next.Level = LevelForExp(next.Experience)

	return Outcome{
		Action:      ActionUncompleted,
		User:        next,
		OldLevel:    oldLevel,
		NewLevel:    next.Level,
		Experience:  -earned,
		Deltas:      reversed,
		Touched:     touched,
		Diagnostics: diagnostics,
	}, nil
}
