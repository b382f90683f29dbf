package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/levelup/internal/gamification"
	"github.com/levelup/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// handleServiceError 将服务层错误映射为 HTTP 状态码
func (a *API) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "目标不存在")
	case errors.Is(err, service.ErrUserExists):
		respondError(c, http.StatusConflict, "用户名已存在")
	case errors.Is(err, service.ErrUserInvalidInput),
		errors.Is(err, service.ErrTaskInvalidInput),
		errors.Is(err, service.ErrRewardInvalidInput),
		errors.Is(err, service.ErrGoalInvalidInput),
		errors.Is(err, gamification.ErrInvalidTask):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		a.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
