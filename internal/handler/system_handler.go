package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studentpulse/internal/service"
)

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

// systemSettingsRequest 中的 Key 为 nil 时保留原值，传空字符串表示清除。
type systemSettingsRequest struct {
	InstitutionName string  `json:"institutionName"`
	AIProvider      string  `json:"aiProvider"`
	OpenAIAPIKey    *string `json:"openaiApiKey"`
	DeepSeekAPIKey  *string `json:"deepseekApiKey"`
	AIModel         string  `json:"aiModel"`
}

type aiTestRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// GetSystemSettings 返回当前系统设置。
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load system settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": systemSettingsPayload(settings)})
}

// UpdateSystemSettings 保存系统设置。
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload systemSettingsRequest
	if !bindJSON(c, &payload, "Invalid system settings") {
		return
	}

	current, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load system settings")
		return
	}

	settings, err := a.system.UpdateSettings(payload.toInput(current))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save system settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "System settings saved",
		"settings": systemSettingsPayload(settings),
	})
}

func (r systemSettingsRequest) toInput(current service.SystemSettings) service.SystemSettingsInput {
	input := service.SystemSettingsInput{
		InstitutionName: r.InstitutionName,
		AIProvider:      r.AIProvider,
		OpenAIAPIKey:    current.OpenAIAPIKey,
		DeepSeekAPIKey:  current.DeepSeekAPIKey,
		AIModel:         r.AIModel,
	}
	if r.OpenAIAPIKey != nil {
		input.OpenAIAPIKey = *r.OpenAIAPIKey
	}
	if r.DeepSeekAPIKey != nil {
		input.DeepSeekAPIKey = *r.DeepSeekAPIKey
	}
	return input
}

func systemSettingsPayload(settings service.SystemSettings) gin.H {
	return gin.H{
		"institutionName": settings.InstitutionName,
		"aiProvider":      settings.AIProvider,
		"aiModel":         settings.AIModel,
		"openaiApiKey":    maskKey(settings.OpenAIAPIKey),
		"deepseekApiKey":  maskKey(settings.DeepSeekAPIKey),
		"hasApiKey":       settings.HasAPIKey(),
	}
}

// maskKey 只保留 Key 末尾四位。
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// TestAIConnection 测试不同 AI 平台 API Key 的连通性。
func (a *API) TestAIConnection(c *gin.Context) {
	var payload aiTestRequest
	if !bindJSON(c, &payload, "Invalid AI configuration") {
		return
	}

	apiKey := strings.TrimSpace(payload.APIKey)
	if apiKey == "" {
		// 未填写时使用已保存的 Key
		if settings, err := a.system.GetSettings(); err == nil {
			settings.AIProvider = payload.Provider
			apiKey = settings.APIKey()
		}
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, apiKey); err != nil {
		switch {
		case errors.Is(err, service.ErrAIAPIKeyMissing):
			respondError(c, http.StatusBadRequest, "A valid AI API key is required")
		default:
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Connection succeeded"})
}
