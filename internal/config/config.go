package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	JWTSecret         string
	GinMode           string
	UploadDir         string
	UploadURLPath     string
	SuperRootUserName string
	SuperRootPassword string

	AIProvider string
	AIAPIKey   string
	AIBaseURL  string
	AIModel    string
	AITimeout  time.Duration

	ERPBaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	StreakResetOnGap bool
	SeedDemoData     bool
}

const defaultAITimeout = 10 * time.Second

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 若工作目录存在 .env 文件，会先加载其中的变量（不覆盖已存在的环境变量）。
func Load() AppConfig {
	_ = godotenv.Load()

	port := envOrDefault("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	sessionSecret := envOrDefault("SESSION_SECRET", "studentpulse-dev-secret")

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      envOrDefault("DATABASE_PATH", "studentpulse.db"),
		SessionSecret:     sessionSecret,
		JWTSecret:         envOrDefault("JWT_SECRET", sessionSecret),
		GinMode:           envOrDefault("GIN_MODE", "release"),
		UploadDir:         envOrDefault("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath:     envOrDefault("UPLOAD_URL_PATH", "/static/uploads"),
		SuperRootUserName: strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
		AIProvider:        strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER"))),
		AIAPIKey:          strings.TrimSpace(os.Getenv("AI_API_KEY")),
		AIBaseURL:         strings.TrimSpace(os.Getenv("AI_BASE_URL")),
		AIModel:           strings.TrimSpace(os.Getenv("AI_MODEL")),
		AITimeout:         durationOrDefault("AI_TIMEOUT", defaultAITimeout),
		ERPBaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("ERP_BASE_URL")), "/"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        envOrDefault("KAFKA_TOPIC", "student-events"),
		StreakResetOnGap:  boolOrDefault("STREAK_RESET_ON_GAP", false),
		SeedDemoData:      boolOrDefault("SEED_DEMO_DATA", true),
	}
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func boolOrDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
