package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/handler"
	"github.com/levelup/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Options 控制路由的可选中间件
type Options struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, log logrus.FieldLogger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(log))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limiter := handler.NewRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst)

	apiGroup := r.Group("/api")
	apiGroup.Use(limiter.Middleware())
	{
		apiGroup.POST("/users", api.CreateUser)
		apiGroup.GET("/users/:id/stats", api.GetUserStats)
		apiGroup.GET("/users/:id/progress", api.GetUserProgress)
		apiGroup.POST("/users/:id/checkin", api.CheckIn)
		apiGroup.GET("/users/:id/weekly", api.GetWeeklyStats)
		apiGroup.GET("/users/:id/rewards", api.ListUserRewards)
		apiGroup.GET("/users/:id/tasks", api.ListUserTasks)
		apiGroup.GET("/users/:id/goal", api.GetUserGoal)
		apiGroup.POST("/users/:id/goal", api.SaveUserGoal)
		apiGroup.POST("/users/:id/tasks/:taskId/complete", api.CompleteTask)
		apiGroup.POST("/users/:id/tasks/:taskId/uncomplete", api.UncompleteTask)

		apiGroup.POST("/tasks", api.CreateTask)
		apiGroup.GET("/tasks/:id", api.GetTask)
	}

	return r
}
