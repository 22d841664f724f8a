package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 诊所工作流客户端配置
type Config struct {
	// 诊所 REST 后端配置
	API APIConfig `yaml:"api"`

	// 报表输出配置
	Report struct {
		OutputDir string `yaml:"output_dir"` // xlsx 报表输出目录
	} `yaml:"report"`

	Log LogConfig `yaml:"log"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json 或 console
}

// APIConfig 诊所 REST 后端配置
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`        // 如 "https://clinic.example.com/api/v1"
	Token          string `yaml:"token"`           // Bearer token（可选）
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 单次请求超时（秒），默认 30
	RetryCount     int    `yaml:"retry_count"`     // 重试次数，默认 3
}

// Load 加载配置
// 优先级：环境变量 > 配置文件（VETDESK_CONFIG 指定的 YAML）> 默认值
func Load() (*Config, error) {
	cfg := &Config{}

	// 默认值
	cfg.API.BaseURL = "http://localhost:8000/api"
	cfg.API.TimeoutSeconds = 30
	cfg.API.RetryCount = 3
	cfg.Report.OutputDir = "."
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	// 配置文件（可选）
	if path := os.Getenv("VETDESK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// 环境变量覆盖
	cfg.API.BaseURL = getEnv("VETDESK_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Token = getEnv("VETDESK_API_TOKEN", cfg.API.Token)
	cfg.API.TimeoutSeconds = parseInt(getEnv("VETDESK_API_TIMEOUT", ""), cfg.API.TimeoutSeconds)
	cfg.API.RetryCount = parseInt(getEnv("VETDESK_API_RETRY_COUNT", ""), cfg.API.RetryCount)
	cfg.Report.OutputDir = getEnv("VETDESK_REPORT_DIR", cfg.Report.OutputDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
