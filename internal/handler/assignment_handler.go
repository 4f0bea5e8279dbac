package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

type assignmentRequest struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
	DueDate string `json:"dueDate"`
}

func (r assignmentRequest) toInput() service.AssignmentInput {
	return service.AssignmentInput{
		Title:   r.Title,
		Subject: r.Subject,
		DueDate: r.DueDate,
	}
}

type weeklyTargetRequest struct {
	WeeklyTarget int `json:"weeklyTarget"`
}

func assignmentIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("assignmentId"))
}

// ListAssignments 返回学生的全部作业。
func (a *API) ListAssignments(c *gin.Context) {
	assignments, err := a.assignments.List(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load assignments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// CreateAssignment 新建作业。
func (a *API) CreateAssignment(c *gin.Context) {
	var payload assignmentRequest
	if !bindJSON(c, &payload, "Invalid assignment payload") {
		return
	}

	assignment, err := a.assignments.Create(studentCodeParam(c), payload.toInput())
	if err != nil {
		handleServiceError(c, err, "Failed to create assignment")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assignment": assignment})
}

// UpdateAssignment 更新作业信息。
func (a *API) UpdateAssignment(c *gin.Context) {
	var payload assignmentRequest
	if !bindJSON(c, &payload, "Invalid assignment payload") {
		return
	}

	assignment, err := a.assignments.Update(studentCodeParam(c), assignmentIDParam(c), payload.toInput())
	if err != nil {
		handleServiceError(c, err, "Failed to update assignment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// DeleteAssignment 删除作业。
func (a *API) DeleteAssignment(c *gin.Context) {
	if err := a.assignments.Delete(studentCodeParam(c), assignmentIDParam(c)); err != nil {
		handleServiceError(c, err, "Failed to delete assignment")
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleAssignment 切换作业完成状态，并返回更新后的每周目标。
func (a *API) ToggleAssignment(c *gin.Context) {
	result, err := a.assignments.Toggle(c.Request.Context(), studentCodeParam(c), assignmentIDParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to update assignment")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetGoals 返回每周目标。
func (a *API) GetGoals(c *gin.Context) {
	goals, err := a.assignments.Goals(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load goals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// UpdateWeeklyTarget 修改每周目标。
func (a *API) UpdateWeeklyTarget(c *gin.Context) {
	var payload weeklyTargetRequest
	if !bindJSON(c, &payload, "Invalid goals payload") {
		return
	}

	goals, err := a.assignments.SetWeeklyTarget(studentCodeParam(c), payload.WeeklyTarget)
	if err != nil {
		handleServiceError(c, err, "Failed to update goals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}
