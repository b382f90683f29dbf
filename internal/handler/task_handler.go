package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/service"
)

type taskPayload struct {
	UserID           uint   `json:"user_id"`
	Title            string `json:"title"`
	Tip              string `json:"tip"`
	Category         string `json:"category"`
	Difficulty       int    `json:"difficulty"`
	RewardPoints     int    `json:"reward_points"`
	IsTimeLimited    bool   `json:"is_time_limited"`
	RewardExpression string `json:"reward_expression"`
	Deadline         string `json:"deadline"`
}

// CreateTask 新建任务
func (a *API) CreateTask(c *gin.Context) {
	var payload taskPayload
	if !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	input := service.TaskInput{
		UserID:           payload.UserID,
		Title:            payload.Title,
		Tip:              payload.Tip,
		Category:         payload.Category,
		Difficulty:       payload.Difficulty,
		RewardPoints:     payload.RewardPoints,
		IsTimeLimited:    payload.IsTimeLimited,
		RewardExpression: payload.RewardExpression,
	}

	if raw := strings.TrimSpace(payload.Deadline); raw != "" {
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "截止时间格式错误")
			return
		}
		input.Deadline = &deadline
	}

	if input.UserID != 0 {
		if _, err := a.users.Get(input.UserID); err != nil {
			a.handleServiceError(c, err)
			return
		}
	}

	task, err := a.tasks.Create(input)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": taskToPayload(*task, false)})
}

// GetTask 返回单个任务
func (a *API) GetTask(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Get(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": taskToPayload(*task, false)})
}

// ListUserTasks 返回用户可见的任务，并标记今天是否已完成
func (a *API) ListUserTasks(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.users.Get(id); err != nil {
		a.handleServiceError(c, err)
		return
	}

	views, err := a.tasks.ListForUser(id, a.progress.Today())
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, view := range views {
		items = append(items, taskToPayload(view.Task, view.CompletedToday))
	}

	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

func taskToPayload(task db.Task, completedToday bool) gin.H {
	payload := gin.H{
		"id":                task.ID,
		"user_id":           task.UserID,
		"title":             task.Title,
		"tip":               task.Tip,
		"tip_html":          service.RenderTip(task.Tip),
		"category":          task.Category,
		"difficulty":        task.Difficulty,
		"reward_points":     task.RewardPoints,
		"is_time_limited":   task.IsTimeLimited,
		"reward_expression": task.RewardExpression,
		"base_experience":   service.BaseExperience(task),
		"completed_today":   completedToday,
	}
	if task.Deadline != nil {
		payload["deadline"] = task.Deadline.Format(time.RFC3339)
	}
	return payload
}
