package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/auth"
	"github.com/studentpulse/internal/db"
	"github.com/studentpulse/internal/service"
)

const (
	identityContextKey = "__identity"
	sessionUserIDKey   = "user_id"
)

// Identity 是当前请求的登录身份，来自会话或 Bearer 令牌。
type Identity struct {
	UserID      uint   `json:"userId"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	StudentCode string `json:"studentId,omitempty"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验用户名密码，写入会话并签发访问令牌。
func (a *API) Login(c *gin.Context) {
	var payload loginRequest
	if !bindJSON(c, &payload, "Username and password are required") {
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		handleServiceError(c, err, "Login failed")
		return
	}

	if hasSession(c) {
		session := sessions.Default(c)
		session.Set(sessionUserIDKey, user.ID)
		if err := session.Save(); err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to save session")
			return
		}
	}

	response := gin.H{"user": a.userPayload(user)}
	if a.tokens != nil {
		token, err := a.tokens.Issue(*user)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to issue token")
			return
		}
		response["token"] = token
	}
	c.JSON(http.StatusOK, response)
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	if hasSession(c) {
		session := sessions.Default(c)
		session.Clear()
		session.Save()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me 返回当前登录身份。
func (a *API) Me(c *gin.Context) {
	identity, _ := currentIdentity(c)
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

// IssueToken 为已登录用户签发新的访问令牌。
func (a *API) IssueToken(c *gin.Context) {
	if a.tokens == nil {
		respondError(c, http.StatusNotFound, "Token issuing is disabled")
		return
	}
	identity, _ := currentIdentity(c)
	user, err := a.users.Get(identity.UserID)
	if err != nil {
		handleServiceError(c, err, "Failed to issue token")
		return
	}
	token, err := a.tokens.Issue(*user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AuthRequired 要求请求携带有效会话或 Bearer 令牌。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := a.identify(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// RequireRole 要求当前身份的角色不低于 minimum。
func (a *API) RequireRole(minimum string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok || !auth.IsAtLeast(identity.Role, minimum) {
			respondError(c, http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// StudentAccess 限制学生账号只能访问自己的数据，辅导员及以上角色不受限。
func (a *API) StudentAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		if auth.IsAtLeast(identity.Role, db.RoleCounsellor) {
			c.Next()
			return
		}
		if identity.StudentCode == "" || !strings.EqualFold(identity.StudentCode, studentCodeParam(c)) {
			respondError(c, http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) identify(c *gin.Context) (Identity, bool) {
	if token := auth.BearerToken(c.GetHeader("Authorization")); token != "" {
		if a.tokens == nil {
			return Identity{}, false
		}
		claims, err := a.tokens.Validate(token)
		if err != nil {
			return Identity{}, false
		}
		identity := Identity{UserID: claims.UserID, Username: claims.Username, Role: auth.NormalizeRole(claims.Role)}
		if claims.StudentID != nil {
			if student, err := a.students.ResolveID(*claims.StudentID); err == nil {
				identity.StudentCode = student.Code
			}
		}
		return identity, true
	}

	if !hasSession(c) {
		return Identity{}, false
	}
	userID, ok := sessions.Default(c).Get(sessionUserIDKey).(uint)
	if !ok || userID == 0 {
		return Identity{}, false
	}
	user, err := a.users.Get(userID)
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        auth.NormalizeRole(user.Role),
		StudentCode: a.users.StudentCode(user),
	}, true
}

func currentIdentity(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

func hasSession(c *gin.Context) bool {
	_, exists := c.Get(sessions.DefaultKey)
	return exists
}

func (a *API) userPayload(user *db.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"role":        auth.NormalizeRole(user.Role),
		"displayName": user.DisplayName,
		"email":       user.Email,
		"studentId":   a.users.StudentCode(user),
		"createdAt":   user.CreatedAt,
	}
}
