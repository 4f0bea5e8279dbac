package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/service"
)

type mentorAssignRequest struct {
	StudentID string `json:"studentId" binding:"required"`
	MentorID  uint   `json:"mentorId"`
}

type interventionRequest struct {
	Date    string `json:"date"`
	Type    string `json:"type" binding:"required"`
	Notes   string `json:"notes"`
	Outcome string `json:"outcome"`
}

// mentorFor 返回本次操作针对的导师；管理员可以通过 mentorId 代为操作。
func mentorFor(c *gin.Context, requested uint) uint {
	identity, _ := currentIdentity(c)
	if requested != 0 && auth.IsAtLeast(identity.Role, db.RoleAdmin) {
		return requested
	}
	return identity.UserID
}

// ListMentorStudents 返回导师名下的学生，高风险在前。
func (a *API) ListMentorStudents(c *gin.Context) {
	var mentorID uint
	if raw := strings.TrimSpace(c.Query("mentorId")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid mentorId")
			return
		}
		mentorID = uint(parsed)
	}

	students, err := a.mentors.ListByMentor(mentorFor(c, mentorID))
	if err != nil {
		handleServiceError(c, err, "Failed to load students")
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// AssignMentorStudent 把学生分配给导师。
func (a *API) AssignMentorStudent(c *gin.Context) {
	var payload mentorAssignRequest
	if !bindJSON(c, &payload, "Student ID is required") {
		return
	}

	assignment, err := a.mentors.Assign(mentorFor(c, payload.MentorID), payload.StudentID)
	if err != nil {
		handleServiceError(c, err, "Failed to assign student")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"mentorId":   assignment.MentorID,
		"studentId":  payload.StudentID,
		"assignedAt": assignment.CreatedAt,
	})
}

// RemoveMentorStudent 解除导师与学生的分配。
func (a *API) RemoveMentorStudent(c *gin.Context) {
	if err := a.mentors.Remove(mentorFor(c, 0), studentCodeParam(c)); err != nil {
		handleServiceError(c, err, "Failed to remove student")
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordIntervention 记录导师对学生的一次干预。
func (a *API) RecordIntervention(c *gin.Context) {
	var payload interventionRequest
	if !bindJSON(c, &payload, "Intervention type is required") {
		return
	}

	identity, _ := currentIdentity(c)
	row, err := a.mentors.RecordIntervention(c.Request.Context(), identity.UserID, studentCodeParam(c), service.InterventionInput{
		Date:    payload.Date,
		Type:    payload.Type,
		Notes:   payload.Notes,
		Outcome: payload.Outcome,
	})
	if err != nil {
		handleServiceError(c, err, "Failed to record intervention")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"intervention": row})
}

// ListInterventions 返回学生的干预记录，最近的在前。
func (a *API) ListInterventions(c *gin.Context) {
	rows, err := a.mentors.Interventions(c.Request.Context(), studentCodeParam(c), parseLimitQuery(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load interventions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"interventions": rows})
}
