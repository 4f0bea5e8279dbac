package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

const maxSnapshotBytes = 4 << 20

// GetDashboard 返回学生首页的风险、平衡度、相关性与建议。
func (a *API) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, a.dashboards.Build(studentCodeParam(c)))
}

// ListStudents 返回全部学生的基本信息。
func (a *API) ListStudents(c *gin.Context) {
	rows, err := a.students.List()
	if err != nil {
		handleServiceError(c, err, "Failed to list students")
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{
			"id":         row.Code,
			"name":       row.Name,
			"course":     row.Course,
			"semester":   row.Semester,
			"section":    row.Section,
			"rollNumber": row.RollNumber,
		})
	}
	c.JSON(http.StatusOK, gin.H{"students": items})
}

// GetProfile 返回学生资料。
func (a *API) GetProfile(c *gin.Context) {
	profile, err := a.profiles.Get(studentCodeParam(c))
	if err != nil {
		handleServiceError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile 合并更新学生资料。
func (a *API) UpdateProfile(c *gin.Context) {
	var patch service.ProfilePatch
	if !bindJSON(c, &patch, "Invalid profile payload") {
		return
	}

	profile, err := a.profiles.Update(studentCodeParam(c), patch)
	if err != nil {
		handleServiceError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UploadProfilePhoto 接收 multipart 头像文件并生成缩略图。
func (a *API) UploadProfilePhoto(c *gin.Context) {
	header, err := c.FormFile("photo")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Photo file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read photo")
		return
	}
	defer file.Close()

	profile, err := a.profiles.UploadPhoto(studentCodeParam(c), file)
	if err != nil {
		handleServiceError(c, err, "Failed to save photo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// ExportSnapshot 以 JSON 附件形式导出学生完整数据。
func (a *API) ExportSnapshot(c *gin.Context) {
	code := studentCodeParam(c)
	raw, err := a.students.ExportSnapshot(code)
	if err != nil {
		handleServiceError(c, err, "Failed to export student data")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code+".json"))
	c.Data(http.StatusOK, "application/json", raw)
}

// ImportSnapshot 导入完整的学生数据文档，缺失字段用默认数据补齐。
func (a *API) ImportSnapshot(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSnapshotBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	data, err := a.students.ImportSnapshot(raw)
	if err != nil {
		handleServiceError(c, err, "Failed to import student data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student data imported", "student": data})
}
