package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/service"
)

type subGoalPayload struct {
	ID          uint   `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"is_completed"`
}

type goalPayload struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Completed   bool             `json:"is_completed"`
	SubGoals    []subGoalPayload `json:"sub_goals"`
}

// GetUserGoal 返回用户的主目标及子目标进度
func (a *API) GetUserGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := a.goals.Get(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, goalToPayload(view))
}

// SaveUserGoal 创建或覆盖用户的主目标
func (a *API) SaveUserGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload goalPayload
	if !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	input := service.GoalInput{
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
		SubGoals:    make([]service.SubGoalInput, 0, len(payload.SubGoals)),
	}
	for _, sub := range payload.SubGoals {
		input.SubGoals = append(input.SubGoals, service.SubGoalInput{
			Title:       sub.Title,
			Description: sub.Description,
			Completed:   sub.Completed,
		})
	}

	view, err := a.goals.Save(id, input)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, goalToPayload(view))
}

func goalToPayload(view *service.GoalView) gin.H {
	subGoals := make([]subGoalPayload, 0, len(view.Goal.SubGoals))
	for _, sub := range view.Goal.SubGoals {
		subGoals = append(subGoals, subGoalPayload{
			ID:          sub.ID,
			Title:       sub.Title,
			Description: sub.Description,
			Completed:   sub.Completed,
		})
	}
	return gin.H{
		"id":                  view.Goal.ID,
		"title":               view.Goal.Title,
		"description":         view.Goal.Description,
		"is_completed":        view.Goal.Completed,
		"created_at":          view.Goal.CreatedAt.Format(time.RFC3339),
		"sub_goals":           subGoals,
		"completed_sub_goals": view.CompletedSubGoals,
		"percentage":          view.Percentage,
	}
}
