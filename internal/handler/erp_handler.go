package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

// ListERPStudents 返回教务系统中的学生，可按 ?branch= 或 ?rollNo= 过滤。
// 教务系统不可用时返回空列表。
func (a *API) ListERPStudents(c *gin.Context) {
	ctx := c.Request.Context()

	if rollNo := strings.TrimSpace(c.Query("rollNo")); rollNo != "" {
		student := a.erp.FindByRollNo(ctx, rollNo)
		if student == nil {
			respondError(c, http.StatusNotFound, "Student not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": service.StudentViews([]service.ERPStudent{*student})})
		return
	}

	var students []service.ERPStudent
	if branch := strings.TrimSpace(c.Query("branch")); branch != "" {
		students = a.erp.ByBranch(ctx, branch)
	} else {
		students = a.erp.Students(ctx).Data
	}

	views := service.StudentViews(students)
	c.JSON(http.StatusOK, gin.H{"students": views, "count": len(views)})
}

// ListERPAtRisk 返回状态不是 Regular 的学生。
func (a *API) ListERPAtRisk(c *gin.Context) {
	views := service.StudentViews(a.erp.AtRisk(c.Request.Context()))
	c.JSON(http.StatusOK, gin.H{"students": views, "count": len(views)})
}

// ListERPSubjects 返回某个教务学生的分科进度。
func (a *API) ListERPSubjects(c *gin.Context) {
	subjects := a.erp.SubjectsFor(c.Request.Context(), c.Param("erpId"))
	c.JSON(http.StatusOK, gin.H{"subjects": subjects, "count": len(subjects)})
}

// ListNotices 返回未过期的通知，内容已渲染为安全的 HTML。
func (a *API) ListNotices(c *gin.Context) {
	notices := a.erp.ActiveNotices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"notices": notices, "count": len(notices)})
}
