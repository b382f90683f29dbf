package gamification

import "time"

// StreakState 为用户身上的连续打卡状态
type StreakState struct {
	Current      int
	Max          int
	LastActivity *time.Time
}

// CalendarDay 取 t 所在时区的日历日期，统一表示为该日期 UTC 零点
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return CalendarDay(a).Equal(CalendarDay(b))
}

// UpdateOnActivity 在 today 至少完成一个任务时调用。
// 昨天有活动则 +1，今天已记录则不变，其余情况重置为 1。
func UpdateOnActivity(s StreakState, today time.Time) StreakState {
	day := CalendarDay(today)
	next := s

	switch {
	case s.LastActivity != nil && sameDay(*s.LastActivity, day):
		return s
	case s.LastActivity != nil && sameDay(*s.LastActivity, day.AddDate(0, 0, -1)):
		next.Current = s.Current + 1
	default:
		next.Current = 1
	}

	if next.Current > next.Max {
		next.Max = next.Current
	}
	next.LastActivity = &day
	return next
}

// CheckAndResetIfInactive 在会话/登录边界调用：最后活动早于昨天时把当前连胜清零。
// 返回值 reset 表示是否发生了重置。
func CheckAndResetIfInactive(s StreakState, today time.Time) (next StreakState, reset bool) {
	if s.LastActivity == nil || s.Current == 0 {
		return s, false
	}
	yesterday := CalendarDay(today).AddDate(0, 0, -1)
	if CalendarDay(*s.LastActivity).Before(yesterday) {
		s.Current = 0
		return s, true
	}
	return s, false
}
