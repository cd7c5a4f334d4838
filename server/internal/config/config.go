package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Storage       StorageConfig       `yaml:"storage"`
	Chat          ChatConfig          `yaml:"chat"`
	Questionnaire QuestionnaireConfig `yaml:"questionnaire"`
	Logging       LoggingConfig       `yaml:"logging"`
	Paths         PathsConfig         `yaml:"paths"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// Addr 返回监听地址。
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig 远端服务（聊天推理、问卷存储）配置
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig 设备本地存储配置
type StorageConfig struct {
	// Driver: memory | file | redis | sqlite
	Driver string `yaml:"driver"`
	// Path 用于 file / sqlite 驱动。
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix 区分同一 Redis 上的多台设备。
	Prefix string `yaml:"prefix"`
}

type ChatConfig struct {
	Greeting string `yaml:"greeting"`
	Apology  string `yaml:"apology"`
}

type QuestionnaireConfig struct {
	HistoryLimit int `yaml:"history_limit"`
	// SyncRuns 为 true 时，完成问卷后会把结果上传到远端。
	SyncRuns bool `yaml:"sync_runs"`
}

type LoggingConfig struct {
	Mode   string `yaml:"mode"`
	Level  string `yaml:"level"`
	Redact bool   `yaml:"redact"`
}

// PathsConfig 可选的内容覆盖文件，留空则使用内置内容。
type PathsConfig struct {
	Sections string `yaml:"sections"`
	Library  string `yaml:"library"`
}

// Default 返回可直接在本机运行的默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8787,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
			PingInterval: 30 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "mindly-data.json",
			Redis:  RedisConfig{Prefix: "mindly"},
		},
		Chat: ChatConfig{
			Greeting: "Hey! I'm Mindly. How can I support you today?",
			Apology:  "Sorry, I'm having trouble connecting. Please try again.",
		},
		Questionnaire: QuestionnaireConfig{
			HistoryLimit: 20,
			SyncRuns:     true,
		},
		Logging: LoggingConfig{
			Mode:   "dev",
			Level:  "info",
			Redact: true,
		},
	}
}

// Load 从文件加载配置；path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// 环境变量覆盖配置文件。
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MINDLY_BACKEND_URL")); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MINDLY_STORAGE_DRIVER")); v != "" {
		cfg.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("MINDLY_STORAGE_PATH")); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("MINDLY_LOG_MODE")); v != "" {
		cfg.Logging.Mode = v
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required (set MINDLY_BACKEND_URL or config)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("server allowed_origins must not be empty")
	}
	switch c.Storage.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for driver %q", c.Storage.Driver)
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required (set REDIS_ADDR or storage.redis.addr)")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Questionnaire.HistoryLimit <= 0 {
		return fmt.Errorf("questionnaire history_limit must be positive")
	}
	if c.Chat.Greeting == "" || c.Chat.Apology == "" {
		return fmt.Errorf("chat greeting and apology are required")
	}
	return nil
}
