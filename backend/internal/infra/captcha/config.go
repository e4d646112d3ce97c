package captcha

import (
	"os"
	"strconv"
	"time"
)

// LoadOptionsFromEnv 从环境变量读取验证码参数，未设置的项使用默认值。
func LoadOptionsFromEnv() Options {
	return Options{
		TTL:             durationEnv("CAPTCHA_TTL", 0),
		Width:           intEnv("CAPTCHA_WIDTH", 0),
		Height:          intEnv("CAPTCHA_HEIGHT", 0),
		Length:          intEnv("CAPTCHA_LENGTH", 0),
		DotCount:        intEnv("CAPTCHA_DOT_COUNT", 0),
		RateLimitPerMin: intEnv("CAPTCHA_RATE_LIMIT_PER_MIN", 10),
		RateLimitWindow: durationEnv("CAPTCHA_RATE_LIMIT_WINDOW", 0),
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
