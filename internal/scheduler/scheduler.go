// Package scheduler 定时执行连胜不活跃检查。
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper 由 ProgressService 实现
type Sweeper interface {
	SweepInactive() (int, error)
}

// Scheduler 包装 cron，只负责连胜清理任务
type Scheduler struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

// New 按标准五段 cron 表达式注册清理任务，表达式按 loc 时区解释。
// schedule 为空时返回 nil，表示不启用
func New(schedule string, loc *time.Location, sweeper Sweeper, log logrus.FieldLogger) (*Scheduler, error) {
	expr := strings.TrimSpace(schedule)
	if expr == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(log)),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
	)
	s := &Scheduler{cron: c, log: log}

	if _, err := c.AddFunc(expr, func() { s.runSweep(sweeper) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start 在后台启动调度
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.log.WithField("entries", len(s.cron.Entries())).Info("streak sweep scheduler started")
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSweep(sweeper Sweeper) {
	reset, err := sweeper.SweepInactive()
	if err != nil {
		s.log.WithError(err).Error("streak sweep failed")
		return
	}
	s.log.WithField("reset", reset).Debug("streak sweep run")
}
