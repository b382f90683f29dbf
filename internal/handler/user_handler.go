package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
)

type userPayload struct {
	Username string `json:"username"`
}

type attributePayload struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Max      int    `json:"max"`
}

type rewardPayload struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnlockLevel int    `json:"unlock_level"`
	ImageURL    string `json:"image_url,omitempty"`
	UnlockedAt  string `json:"unlocked_at,omitempty"`
}

// CreateUser 显式创建用户
func (a *API) CreateUser(c *gin.Context) {
	var payload userPayload
	if !bindJSON(c, &payload, "请求参数错误") {
		return
	}

	user, err := a.users.Create(payload.Username)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToPayload(*user)})
}

// GetUserStats 返回等级、经验、属性与连胜
func (a *API) GetUserStats(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := a.users.Stats(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	attributes := make([]attributePayload, 0, len(stats.Attributes))
	for _, attr := range stats.Attributes {
		attributes = append(attributes, attributePayload{
			Category: string(attr.Category),
			Value:    attr.Value,
			Max:      attr.Max,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       userToPayload(stats.User),
		"progress":   progressToPayload(stats.Progress),
		"attributes": attributes,
	})
}

// GetUserProgress 返回当前等级内的进度
func (a *API) GetUserProgress(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := a.progress.LevelProgress(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progressToPayload(progress))
}

// CheckIn 在会话开始时检查连胜是否需要清零
func (a *API) CheckIn(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.progress.CheckIn(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reset":              result.Reset,
		"current_streak":     result.CurrentStreak,
		"max_streak":         result.MaxStreak,
		"last_activity_date": formatDay(result.LastActivityDate),
	})
}

// GetWeeklyStats 返回最近 7 天的完成统计
func (a *API) GetWeeklyStats(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := a.stats.Weekly(id, a.progress.Today())
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	days := make([]gin.H, 0, len(stats.Days))
	for _, day := range stats.Days {
		days = append(days, gin.H{
			"date":       day.Day.Format(time.DateOnly),
			"completed":  day.Completed,
			"experience": day.Experience,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"range": gin.H{
			"start": stats.RangeStart.Format(time.DateOnly),
			"end":   stats.RangeEnd.Format(time.DateOnly),
		},
		"days":                  days,
		"total_completed":       stats.TotalCompleted,
		"total_experience":      stats.TotalExperience,
		"task_count":            stats.TaskCount,
		"completion_percentage": stats.CompletionPercentage,
		"current_streak":        stats.CurrentStreak,
	})
}

// ListUserRewards 返回用户已解锁的奖励
func (a *API) ListUserRewards(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	unlocked, err := a.rewards.ListForUser(id)
	if err != nil {
		a.handleServiceError(c, err)
		return
	}

	items := make([]rewardPayload, 0, len(unlocked))
	for _, entry := range unlocked {
		item := rewardToPayload(entry.Reward)
		item.UnlockedAt = entry.UnlockedAt.Format(time.RFC3339)
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"rewards": items})
}

func userToPayload(user db.User) gin.H {
	return gin.H{
		"id":                 user.ID,
		"username":           user.Username,
		"experience":         user.Experience,
		"level":              gamification.LevelForExp(user.Experience),
		"current_streak":     user.CurrentStreak,
		"max_streak":         user.MaxStreak,
		"last_activity_date": formatDay(user.LastActivityDate),
	}
}

func progressToPayload(p gamification.Progress) gin.H {
	return gin.H{
		"level":                 p.Level,
		"experience":            p.Experience,
		"current_level_floor":   p.CurrentLevelFloor,
		"next_level_threshold":  p.NextLevelThreshold,
		"progress_within_level": p.ProgressWithinLevel,
		"percentage":            p.Percentage,
	}
}

func rewardToPayload(reward db.Reward) rewardPayload {
	return rewardPayload{
		ID:          reward.ID,
		Name:        reward.Name,
		Description: reward.Description,
		UnlockLevel: reward.UnlockLevel,
		ImageURL:    reward.ImageURL,
	}
}

func formatDay(day *time.Time) string {
	if day == nil {
		return ""
	}
	return day.Format(time.DateOnly)
}
