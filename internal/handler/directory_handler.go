package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

type directoryUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Age   *int    `json:"age"`
}

func (r directoryUserRequest) toInput() service.DirectoryInput {
	return service.DirectoryInput{Name: r.Name, Email: r.Email, Age: r.Age}
}

// ListDirectoryUsers 返回目录用户；带 ?email= 时按邮箱精确查找。
func (a *API) ListDirectoryUsers(c *gin.Context) {
	ctx := c.Request.Context()
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		user, err := a.directory.GetByEmail(ctx, email)
		if err != nil {
			handleServiceError(c, err, "Failed to load user")
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": []service.DirectoryUser{*user}})
		return
	}

	users, err := a.directory.List(ctx)
	if err != nil {
		handleServiceError(c, err, "Failed to load users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetDirectoryUser 返回单个目录用户。
func (a *API) GetDirectoryUser(c *gin.Context) {
	user, err := a.directory.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		handleServiceError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateDirectoryUser 新建目录用户。
func (a *API) CreateDirectoryUser(c *gin.Context) {
	var payload directoryUserRequest
	if !bindJSON(c, &payload, "Invalid user payload") {
		return
	}

	user, err := a.directory.Create(c.Request.Context(), payload.toInput())
	if err != nil {
		handleServiceError(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// UpdateDirectoryUser 部分更新目录用户。
func (a *API) UpdateDirectoryUser(c *gin.Context) {
	var payload directoryUserRequest
	if !bindJSON(c, &payload, "Invalid user payload") {
		return
	}

	user, err := a.directory.Update(c.Request.Context(), c.Param("userId"), payload.toInput())
	if err != nil {
		handleServiceError(c, err, "Failed to update user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteDirectoryUser 删除目录用户。
func (a *API) DeleteDirectoryUser(c *gin.Context) {
	if err := a.directory.Delete(c.Request.Context(), c.Param("userId")); err != nil {
		handleServiceError(c, err, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}
