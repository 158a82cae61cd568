// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
	ActionTokenExpireHours int    `mapstructure:"action_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时通知只写日志。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// LLMConfig 存储大语言模型网关相关的配置。
type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Backend        string `mapstructure:"backend"` // "rest" 或 "genai"
	PrimaryModel   string `mapstructure:"primary_model"`
	FallbackModel  string `mapstructure:"fallback_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RateLimitConfig 配置每个会话的请求准入窗口。
type RateLimitConfig struct {
	MaxRequests int   `mapstructure:"max_requests"`
	WindowMs    int64 `mapstructure:"window_ms"`
}

// ChatConfig 配置会话核心。
type ChatConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
	Persistence string `mapstructure:"persistence"` // "memory" 或 "redis"
	HistoryTTLH int    `mapstructure:"history_ttl_hours"`
}

// AuthConfig 配置会话网关。
type AuthConfig struct {
	ProviderName      string `mapstructure:"provider_name"`
	ProviderSecret    string `mapstructure:"provider_secret"`
	MinPasswordLength int    `mapstructure:"min_password_length"`
}

// UploadConfig 配置附件元数据的上游校验规则。
type UploadConfig struct {
	MaxFiles        int      `mapstructure:"max_files"`
	MaxFileSizeMB   int      `mapstructure:"max_file_size_mb"`
	AllowedTypes    []string `mapstructure:"allowed_types"`
	MaxContentChars int      `mapstructure:"max_content_chars"`
}

// ThrottleConfig 配置 HTTP 层按客户端 IP 的令牌桶限流。
type ThrottleConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DefaultAllowedTypes 是附件 MIME 白名单的默认值。
var DefaultAllowedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"image/png",
	"image/jpeg",
	"image/jpg",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/csv",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("jwt.action_token_expire_hours", 24)
	v.SetDefault("kafka.topic", "auth-notifications")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("llm.backend", "rest")
	v.SetDefault("llm.primary_model", "gemini-2.5-flash")
	v.SetDefault("llm.fallback_model", "gemini-2.5-pro")
	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.window_ms", 60000)
	v.SetDefault("chat.default_mode", "quick")
	v.SetDefault("chat.persistence", "memory")
	v.SetDefault("chat.history_ttl_hours", 168)
	v.SetDefault("auth.provider_name", "google")
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("upload.max_files", 5)
	v.SetDefault("upload.max_file_size_mb", 10)
	v.SetDefault("upload.allowed_types", DefaultAllowedTypes)
	v.SetDefault("upload.max_content_chars", 10000)
	v.SetDefault("throttle.requests_per_second", 20)
	v.SetDefault("throttle.burst", 50)
}

// Load 从指定路径读取 YAML 配置并返回解析结果。
// 唯一的环境变量约定是 LLM_API_KEY，它会覆盖 llm.api_key。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
