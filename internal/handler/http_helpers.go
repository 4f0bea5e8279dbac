package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/analytics"
	"github.com/studentpulse/internal/scoring"
	"github.com/studentpulse/internal/service"
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
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseLimitQuery 读取 ?limit=，缺省或非法时返回 0（不限制）。
func parseLimitQuery(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// parseDateOrToday 解析 YYYY-MM-DD，空值返回今天。
func parseDateOrToday(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	parsed, err := time.Parse(scoring.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", service.ErrInvalidDate, raw)
	}
	return parsed, nil
}

func studentCodeParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// handleServiceError 把服务层的哨兵错误映射为 HTTP 状态码。
func handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		respondError(c, http.StatusNotFound, "Student not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		respondError(c, http.StatusNotFound, "Assignment not found")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrDirectoryUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrAssignmentMissing):
		respondError(c, http.StatusNotFound, "Mentor assignment not found")
	case errors.Is(err, service.ErrAlreadyAssigned):
		respondError(c, http.StatusConflict, "This student is already assigned to this mentor")
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrDirectoryEmailTaken):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidScale),
		errors.Is(err, service.ErrAssignmentTitleRequired),
		errors.Is(err, service.ErrInvalidWeeklyTarget),
		errors.Is(err, service.ErrReflectionIncomplete),
		errors.Is(err, service.ErrInvalidFocusDuration),
		errors.Is(err, service.ErrInvalidScheduleItem),
		errors.Is(err, service.ErrProfileInvalidInput),
		errors.Is(err, service.ErrUnsupportedImage),
		errors.Is(err, service.ErrInvalidSnapshot),
		errors.Is(err, service.ErrInvalidIntervention),
		errors.Is(err, service.ErrInvalidFeatures),
		errors.Is(err, service.ErrNotMentor),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrUserInvalidInput),
		errors.Is(err, service.ErrDirectoryInvalidInput),
		errors.Is(err, analytics.ErrInvalidRow):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		c.Error(err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
