package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ModeLocal 表示使用本地 SQLite、无 Redis 的开发模式。
	ModeLocal = "local"
	// ModeOnline 表示默认的在线模式（MySQL + Redis）。
	ModeOnline = "online"

	defaultPort          = "8080"
	defaultAccessTTL     = 15 * time.Minute
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultLocalDBRel    = "data/promptlib-local.db"
	defaultJWTSecretSeed = "promptlib-dev-secret"
)

// RuntimeConfig 汇总服务进程启动所需的运行期配置。
type RuntimeConfig struct {
	Mode       string
	Port       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	MySQLDSN   string
	SQLitePath string
}

// LoadRuntimeConfig 读取环境变量并推导运行模式与各项默认值。
func LoadRuntimeConfig() RuntimeConfig {
	LoadEnvFiles()

	mode := strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if mode != ModeLocal {
		mode = ModeOnline
	}

	port := strings.TrimSpace(os.Getenv("APP_PORT"))
	if port == "" {
		port = defaultPort
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		// 本地模式允许退化到开发密钥，在线模式由 bootstrap 阶段拒绝启动。
		secret = defaultJWTSecretSeed
	}

	cfg := RuntimeConfig{
		Mode:       mode,
		Port:       port,
		JWTSecret:  secret,
		AccessTTL:  parseDurationEnv("JWT_ACCESS_TTL", defaultAccessTTL),
		RefreshTTL: parseDurationEnv("JWT_REFRESH_TTL", defaultRefreshTTL),
		MySQLDSN:   strings.TrimSpace(os.Getenv("MYSQL_DSN")),
		SQLitePath: normalisePath(defaultLocalDBRel),
	}

	if raw := strings.TrimSpace(os.Getenv("LOCAL_SQLITE_PATH")); raw != "" {
		cfg.SQLitePath = normalisePath(raw)
	}

	return cfg
}

// parseDurationEnv 解析时长类环境变量，非法或缺失时返回默认值。
func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// normalisePath 将路径展开为绝对路径，兼容 ~ 前缀与相对路径。
func normalisePath(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
		}
	}
	if filepath.IsAbs(raw) {
		return raw
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}
