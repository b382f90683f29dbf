package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/gamification"
	"github.com/levelup/internal/service"
)

type deltaPayload struct {
	Category string `json:"category"`
	Delta    int    `json:"delta"`
}

type completionPayload struct {
	Success          bool            `json:"success"`
	AlreadyCompleted bool            `json:"already_completed"`
	Action           string          `json:"action"`
	LeveledUp        bool            `json:"leveled_up"`
	OldLevel         int             `json:"old_level"`
	NewLevel         int             `json:"new_level"`
	NewExperience    int             `json:"new_experience"`
	ExperienceDelta  int             `json:"experience_delta"`
	CurrentStreak    int             `json:"current_streak"`
	MaxStreak        int             `json:"max_streak"`
	Deltas           []deltaPayload  `json:"deltas"`
	UnlockedRewards  []rewardPayload `json:"unlocked_rewards"`
	EventID          string          `json:"event_id,omitempty"`
}

// CompleteTask 完成任务，当天已完成时按切换语义撤销
func (a *API) CompleteTask(c *gin.Context) {
	userID, taskID, ok := parseCompletionParams(c)
	if !ok {
		return
	}

	result, err := a.progress.Complete(userID, taskID)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, completionToPayload(result))
}

// UncompleteTask 撤销当天的完成
func (a *API) UncompleteTask(c *gin.Context) {
	userID, taskID, ok := parseCompletionParams(c)
	if !ok {
		return
	}

	result, err := a.progress.Uncomplete(userID, taskID)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        result.Success,
		"current_streak": result.CurrentStreak,
		"new_experience": result.NewExperience,
		"new_level":      result.NewLevel,
	})
}

func parseCompletionParams(c *gin.Context) (uint, uint, bool) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, taskID, true
}

func completionToPayload(result *service.CompletionResult) completionPayload {
	payload := completionPayload{
		Success:          result.Success,
		AlreadyCompleted: result.AlreadyCompleted,
		Action:           string(result.Action),
		LeveledUp:        result.LeveledUp,
		OldLevel:         result.OldLevel,
		NewLevel:         result.NewLevel,
		NewExperience:    result.NewExperience,
		ExperienceDelta:  result.ExperienceDelta,
		CurrentStreak:    result.CurrentStreak,
		MaxStreak:        result.MaxStreak,
		Deltas:           deltasToPayload(result.Deltas),
		UnlockedRewards:  make([]rewardPayload, 0, len(result.UnlockedRewards)),
		EventID:          result.EventID,
	}
	for _, reward := range result.UnlockedRewards {
		payload.UnlockedRewards = append(payload.UnlockedRewards, rewardToPayload(reward))
	}
	return payload
}

func deltasToPayload(deltas []gamification.Delta) []deltaPayload {
	items := make([]deltaPayload, 0, len(deltas))
	for _, d := range deltas {
		items = append(items, deltaPayload{Category: string(d.Category), Delta: d.Amount})
	}
	return items
}
