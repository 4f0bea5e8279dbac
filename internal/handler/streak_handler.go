package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/db"
)

type attendanceMarkRequest struct {
	Date string `json:"date"`
}

// GetStreaks 返回学生的全部连续记录与鼓励语。
func (a *API) GetStreaks(c *gin.Context) {
	student, err := a.students.Resolve(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load streaks")
		return
	}

	summary, err := a.streaks.Summary(student.ID)
	if err != nil {
		handleServiceError(c, err, "Failed to load streaks")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MarkAttendance 记录一次到课，推进出勤连续记录。
func (a *API) MarkAttendance(c *gin.Context) {
	var payload attendanceMarkRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "Invalid attendance payload") {
		return
	}
	date, err := parseDateOrToday(payload.Date)
	if err != nil {
		handleServiceError(c, err, "Invalid date")
		return
	}

	student, err := a.students.Resolve(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to record attendance")
		return
	}

	streak, err := a.streaks.Bump(student.ID, db.StreakAttendance, date)
	if err != nil {
		handleServiceError(c, err, "Failed to record attendance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": streak})
}
