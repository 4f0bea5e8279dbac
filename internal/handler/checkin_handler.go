package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

type checkInRequest struct {
	Date       string `json:"date"`
	Mood       int    `json:"mood"`
	Stress     int    `json:"stress"`
	Sleep      int    `json:"sleep"`
	Motivation int    `json:"motivation"`
}

type reflectionRequest struct {
	Date      string `json:"date"`
	WentWell  string `json:"wentWell"`
	ToImprove string `json:"toImprove"`
}

type focusSessionRequest struct {
	Subject         string `json:"subject"`
	DurationMinutes int    `json:"durationMinutes"`
}

// SubmitCheckIn 保存当天的身心自评，同一天重复提交会覆盖。
func (a *API) SubmitCheckIn(c *gin.Context) {
	var payload checkInRequest
	if !bindJSON(c, &payload, "Invalid check-in payload") {
		return
	}
	date, err := parseDateOrToday(payload.Date)
	if err != nil {
		handleServiceError(c, err, "Invalid date")
		return
	}

	result, err := a.checkins.Submit(c.Request.Context(), studentCodeParam(c), service.CheckInInput{
		Date:       date,
		Mood:       payload.Mood,
		Stress:     payload.Stress,
		Sleep:      payload.Sleep,
		Motivation: payload.Motivation,
	})
	if err != nil {
		handleServiceError(c, err, "Failed to save check-in")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// ListCheckIns 返回最近的自评记录。
func (a *API) ListCheckIns(c *gin.Context) {
	records, err := a.checkins.History(studentCodeParam(c), parseLimitQuery(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load check-ins")
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkIns": records})
}

// SaveReflection 保存本周复盘。
func (a *API) SaveReflection(c *gin.Context) {
	var payload reflectionRequest
	if !bindJSON(c, &payload, "Invalid reflection payload") {
		return
	}
	date, err := parseDateOrToday(payload.Date)
	if err != nil {
		handleServiceError(c, err, "Invalid date")
		return
	}

	reflection, err := a.engagement.SaveReflection(studentCodeParam(c), date, payload.WentWell, payload.ToImprove)
	if err != nil {
		handleServiceError(c, err, "Failed to save reflection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflection": reflection})
}

// ListReflections 返回全部复盘，最近一周在前。
func (a *API) ListReflections(c *gin.Context) {
	reflections, err := a.engagement.Reflections(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load reflections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflections": reflections})
}

// RecordFocusSession 记录一次完成的专注计时。
func (a *API) RecordFocusSession(c *gin.Context) {
	var payload focusSessionRequest
	if !bindJSON(c, &payload, "Invalid focus session payload") {
		return
	}

	session, err := a.engagement.RecordFocusSession(studentCodeParam(c), payload.Subject, payload.DurationMinutes)
	if err != nil {
		handleServiceError(c, err, "Failed to save focus session")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ListFocusSessions 返回专注记录与累计时长。
func (a *API) ListFocusSessions(c *gin.Context) {
	summary, err := a.engagement.FocusSessions(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load focus sessions")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AddScheduleItem 新增一条日程。
func (a *API) AddScheduleItem(c *gin.Context) {
	var payload service.ScheduleItem
	if !bindJSON(c, &payload, "Invalid schedule payload") {
		return
	}

	item, err := a.engagement.AddScheduleItem(studentCodeParam(c), payload)
	if err != nil {
		handleServiceError(c, err, "Failed to save schedule item")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetSchedule 返回 ?date= 指定日期的日程，默认今天。
func (a *API) GetSchedule(c *gin.Context) {
	date, err := parseDateOrToday(c.Query("date"))
	if err != nil {
		handleServiceError(c, err, "Invalid date")
		return
	}

	schedule, err := a.engagement.Schedule(studentCodeParam(c), date)
	if err != nil {
		handleServiceError(c, err, "Failed to load schedule")
		return
	}
	c.JSON(http.StatusOK, schedule)
}
