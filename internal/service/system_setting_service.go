package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studentpulse/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// AIProviderOpenAI 表示使用 OpenAI 能力。
	AIProviderOpenAI = "openai"
	// AIProviderDeepSeek 表示使用 DeepSeek 能力。
	AIProviderDeepSeek = "deepseek"

	defaultInstitutionName = "StudentPulse"
)

var supportedAIProviders = []string{AIProviderOpenAI, AIProviderDeepSeek}

// SystemSettings 描述后台可配置的系统信息。
type SystemSettings struct {
	InstitutionName string `json:"institutionName"`
	AIProvider      string `json:"aiProvider"`
	OpenAIAPIKey    string `json:"-"`
	DeepSeekAPIKey  string `json:"-"`
	AIModel         string `json:"aiModel"`
}

// HasAPIKey 判断当前平台是否已配置 Key。
func (s SystemSettings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey()) != ""
}

// APIKey 返回当前平台对应的 Key。
func (s SystemSettings) APIKey() string {
	if normalizeAIProvider(s.AIProvider) == AIProviderDeepSeek {
		return s.DeepSeekAPIKey
	}
	return s.OpenAIAPIKey
}

// ErrAIAPIKeyMissing 表示未提供必需的 AI 平台 API Key。
var ErrAIAPIKeyMissing = errors.New("api key is required")

// SystemSettingsInput 用于更新系统设置。
type SystemSettingsInput struct {
	InstitutionName string
	AIProvider      string
	OpenAIAPIKey    string
	DeepSeekAPIKey  string
	AIModel         string
}

// SystemSettingService 提供系统设置的读取与更新能力。
// 数据库中没有的值回退到环境变量提供的默认值。
type SystemSettingService struct {
	db              *gorm.DB
	defaults        SystemSettings
	httpClient      httpDoer
	openAIBaseURL   string
	deepSeekBaseURL string
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB) *SystemSettingService {
	return &SystemSettingService{
		db:              gdb,
		defaults:        SystemSettings{InstitutionName: defaultInstitutionName, AIProvider: AIProviderOpenAI},
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		openAIBaseURL:   "https://api.openai.com/v1",
		deepSeekBaseURL: "https://api.deepseek.com/v1",
	}
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var settingKeys = []string{
	db.SettingKeyInstitutionName,
	db.SettingKeyAIProvider,
	db.SettingKeyOpenAIAPIKey,
	db.SettingKeyDeepSeekAPIKey,
	db.SettingKeyAIModel,
}

// SetEnvDefaults 用环境变量中的 AI 配置作为默认值，apiKey 归属 provider 对应的平台。
func (s *SystemSettingService) SetEnvDefaults(provider, apiKey, model string) {
	prov := normalizeAIProvider(provider)
	if prov == "" {
		prov = AIProviderOpenAI
	}
	s.defaults.AIProvider = prov
	s.defaults.AIModel = strings.TrimSpace(model)
	if prov == AIProviderDeepSeek {
		s.defaults.DeepSeekAPIKey = strings.TrimSpace(apiKey)
	} else {
		s.defaults.OpenAIAPIKey = strings.TrimSpace(apiKey)
	}
}

// GetSettings 读取系统设置，如未设置将返回默认值。
func (s *SystemSettingService) GetSettings() (SystemSettings, error) {
	result := s.defaults

	var records []db.SystemSetting
	if err := s.db.Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		if value == "" {
			continue
		}
		switch record.Key {
		case db.SettingKeyInstitutionName:
			result.InstitutionName = value
		case db.SettingKeyAIProvider:
			if provider := normalizeAIProvider(value); provider != "" {
				result.AIProvider = provider
			}
		case db.SettingKeyOpenAIAPIKey:
			result.OpenAIAPIKey = value
		case db.SettingKeyDeepSeekAPIKey:
			result.DeepSeekAPIKey = value
		case db.SettingKeyAIModel:
			result.AIModel = value
		}
	}

	return result, nil
}

// UpdateSettings 保存系统设置，未填写学校名称时回退默认值。
func (s *SystemSettingService) UpdateSettings(input SystemSettingsInput) (SystemSettings, error) {
	provider := normalizeAIProvider(input.AIProvider)
	if provider == "" {
		provider = AIProviderOpenAI
	}

	sanitized := SystemSettings{
		InstitutionName: strings.TrimSpace(input.InstitutionName),
		AIProvider:      provider,
		OpenAIAPIKey:    strings.TrimSpace(input.OpenAIAPIKey),
		DeepSeekAPIKey:  strings.TrimSpace(input.DeepSeekAPIKey),
		AIModel:         strings.TrimSpace(input.AIModel),
	}
	if sanitized.InstitutionName == "" {
		sanitized.InstitutionName = defaultInstitutionName
	}

	values := map[string]string{
		db.SettingKeyInstitutionName: sanitized.InstitutionName,
		db.SettingKeyAIProvider:      sanitized.AIProvider,
		db.SettingKeyOpenAIAPIKey:    sanitized.OpenAIAPIKey,
		db.SettingKeyDeepSeekAPIKey:  sanitized.DeepSeekAPIKey,
		db.SettingKeyAIModel:         sanitized.AIModel,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, key := range settingKeys {
			if err := upsertSetting(tx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SystemSettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return s.GetSettings()
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// SetHTTPClient 替换用于访问第三方服务的 HTTP 客户端，主要面向测试场景。
func (s *SystemSettingService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
		return
	}
	s.httpClient = client
}

// SetOpenAIBaseURL 覆盖 OpenAI API 的基础地址，便于测试或自定义代理。
func (s *SystemSettingService) SetOpenAIBaseURL(base string) {
	s.openAIBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// SetDeepSeekBaseURL 覆盖 DeepSeek API 的基础地址。
func (s *SystemSettingService) SetDeepSeekBaseURL(base string) {
	s.deepSeekBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// TestAIConnection 调用指定 AI 平台的模型列表接口验证 API Key。
func (s *SystemSettingService) TestAIConnection(ctx context.Context, provider, apiKey string) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return ErrAIAPIKeyMissing
	}

	prov := normalizeAIProvider(provider)
	if prov == "" {
		prov = AIProviderOpenAI
	}

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	base, label := s.openAIBaseURL, "OpenAI"
	if prov == AIProviderDeepSeek {
		base, label = s.deepSeekBaseURL, "DeepSeek"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/models", nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", strings.ToLower(label), err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("User-Agent", "studentpulse-admin/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("%s returned %s (%s)", label, resp.Status, msg)
		}
		return fmt.Errorf("%s returned %s", label, resp.Status)
	}
	return nil
}

func normalizeAIProvider(provider string) string {
	trimmed := strings.ToLower(strings.TrimSpace(provider))
	for _, candidate := range supportedAIProviders {
		if trimmed == candidate {
			return candidate
		}
	}
	return ""
}
