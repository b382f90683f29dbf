package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultStreakSweepSchedule = "5 0 * * *"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr          string
	Port                string
	DatabasePath        string
	GinMode             string
	LogLevel            string
	LogFormat           string
	Timezone            string
	RewardCatalogPath   string
	StreakSweepSchedule string
	RateLimitPerSecond  float64
	RateLimitBurst      int
}

// Load 先尝试读取 .env，再从环境变量读取应用配置，并为缺失项提供默认值。
func Load() AppConfig {
	// .env 不存在时忽略
	_ = godotenv.Load()

	port := envOrDefault("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	schedule, ok := os.LookupEnv("STREAK_SWEEP_SCHEDULE")
	if !ok {
		schedule = defaultStreakSweepSchedule
	}

	return AppConfig{
		ListenAddr:          listenAddr,
		Port:                port,
		DatabasePath:        envOrDefault("DATABASE_PATH", "levelup.db"),
		GinMode:             envOrDefault("GIN_MODE", "release"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "text"),
		Timezone:            envOrDefault("APP_TIMEZONE", "Local"),
		RewardCatalogPath:   strings.TrimSpace(os.Getenv("REWARD_CATALOG")),
		StreakSweepSchedule: strings.TrimSpace(schedule),
		RateLimitPerSecond:  envFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:      envInt("RATE_LIMIT_BURST", 10),
	}
}

// Location 解析配置的时区，无法识别时回退到本地时区
func (c AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// envFloat 允许显式配置 0，用于关闭对应功能
func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
