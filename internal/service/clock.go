package service

import (
	"time"

	"github.com/levelup/internal/gamification"
)

// dayClock 负责推导“今天”，测试中可替换 now
type dayClock struct {
	now func() time.Time
	loc *time.Location
}

func newDayClock() dayClock {
	return dayClock{now: time.Now, loc: time.Local}
}

// today 返回配置时区下的日历日期（UTC 零点表示）
func (c dayClock) today() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	loc := c.loc
	if loc == nil {
		loc = time.Local
	}
	return gamification.CalendarDay(now().In(loc))
}
