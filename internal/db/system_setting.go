package db

import "gorm.io/gorm"

// SystemSetting 存储后台可配置的系统级键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeyInstitutionName 表示学校名称，会写入风险评估提示词。
	SettingKeyInstitutionName = "institution_name"
	// SettingKeyAIProvider 表示当前使用的 AI 平台。
	SettingKeyAIProvider = "ai_provider"
	// SettingKeyOpenAIAPIKey 表示 OpenAI API Key。
	SettingKeyOpenAIAPIKey = "openai_api_key"
	// SettingKeyDeepSeekAPIKey 表示 DeepSeek API Key。
	SettingKeyDeepSeekAPIKey = "deepseek_api_key"
	// SettingKeyAIModel 覆盖默认模型名。
	SettingKeyAIModel = "ai_model"
)
