package handler

import (
	"time"

	"github.com/levelup/internal/logging"
	"github.com/levelup/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	log      logrus.FieldLogger
	users    *service.UserService
	tasks    *service.TaskService
	progress *service.ProgressService
	rewards  *service.RewardService
	stats    *service.StatsService
	goals    *service.GoalService
}

// NewAPI constructs a handler set with shared services.
// loc 决定“今天”的划分，为空时使用本地时区
func NewAPI(db *gorm.DB, log logrus.FieldLogger, loc *time.Location) *API {
	if log == nil {
		log = logging.Discard()
	}
	return &API{
		db:       db,
		log:      log,
		users:    service.NewUserService(db),
		tasks:    service.NewTaskService(db),
		progress: service.NewProgressService(db, log).WithLocation(loc),
		rewards:  service.NewRewardService(db),
		stats:    service.NewStatsService(db),
		goals:    service.NewGoalService(db),
	}
}

// Progress exposes the progress service so the scheduler can share the same clock.
func (a *API) Progress() *service.ProgressService {
	return a.progress
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
