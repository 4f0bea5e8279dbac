package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/service"
)

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	StudentID   string `json:"studentId"`
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListUsers 返回账号列表，可用 ?role= 过滤。
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.List(c.Query("role"))
	if err != nil {
		handleServiceError(c, err, "Failed to load users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for i := range users {
		items = append(items, a.userPayload(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

// CreateUser 新建账号。不能创建高于自身权限的账号。
func (a *API) CreateUser(c *gin.Context) {
	var payload createUserRequest
	if !bindJSON(c, &payload, "Username and password are required") {
		return
	}
	if !a.canGrant(c, payload.Role) {
		respondError(c, http.StatusForbidden, "Cannot grant a role above your own")
		return
	}

	user, err := a.users.Create(service.UserInput{
		Username:    payload.Username,
		Password:    payload.Password,
		Role:        payload.Role,
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		StudentCode: payload.StudentID,
	})
	if err != nil {
		handleServiceError(c, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": a.userPayload(user)})
}

// SetUserRole 修改账号角色。
func (a *API) SetUserRole(c *gin.Context) {
	id, err := parseUintParam(c, "userId")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload setRoleRequest
	if !bindJSON(c, &payload, "Role is required") {
		return
	}
	if !a.canGrant(c, payload.Role) {
		respondError(c, http.StatusForbidden, "Cannot grant a role above your own")
		return
	}

	user, err := a.users.SetRole(id, payload.Role)
	if err != nil {
		handleServiceError(c, err, "Failed to update role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a.userPayload(user)})
}

// ListRoles 返回按权限从低到高排列的角色。
func (a *API) ListRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": auth.Roles()})
}

func (a *API) canGrant(c *gin.Context, role string) bool {
	if role == "" {
		return true
	}
	if !auth.ValidRole(role) {
		// 交给服务层返回 ErrInvalidRole
		return true
	}
	identity, _ := currentIdentity(c)
	if identity.Role == db.RoleSuperAdmin {
		return true
	}
	return auth.IsAtLeast(identity.Role, role)
}
