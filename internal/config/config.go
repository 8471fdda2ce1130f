package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// TrackingConfig 定义像素追踪的核心业务配置
type TrackingConfig struct {
	// BaseURL 用于拼接像素回调链接，如 https://mailsight.app
	BaseURL string
	// CodeLength 像素代码长度，默认 12
	CodeLength int
	// PixelCacheTTL 像素代码查询结果的缓存时间
	PixelCacheTTL time.Duration
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空表示只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "mailsight"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// SMTPConfig 定义外发通知邮件的 SMTP 客户端配置
type SMTPConfig struct {
	Enabled  bool   // 是否启用首次打开邮件通知
	Address  string // SMTP 服务器地址，格式 "host:port"
	From     string // 发件人地址
	Username string // SMTP 认证用户名
	Password string // SMTP 认证密码
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Tracking TrackingConfig // 像素追踪配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	SMTP     SMTPConfig     // 通知邮件配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//   1. 系统环境变量（最高优先级）
//   2. .env 文件（如果存在）
//   3. 默认值
//
// 环境变量前缀: MAILSIGHT_
// 例如: MAILSIGHT_SERVER_HOST, MAILSIGHT_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailsight")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("tracking.base_url", "http://localhost:8080")
	viper.SetDefault("tracking.code_length", 12)
	viper.SetDefault("tracking.pixel_cache_ttl", "5m")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailsight")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("smtp.address", "")
	viper.SetDefault("smtp.from", "")
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")

	baseURL := strings.TrimRight(viper.GetString("tracking.base_url"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("tracking.base_url must not be empty")
	}

	codeLength := viper.GetInt("tracking.code_length")
	if codeLength < 8 || codeLength > 32 {
		codeLength = 12
	}

	pixelCacheTTL, err := time.ParseDuration(viper.GetString("tracking.pixel_cache_ttl"))
	if err != nil {
		pixelCacheTTL = 5 * time.Minute
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILSIGHT_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	smtpEnabled := viper.GetBool("smtp.enabled")
	smtpAddress := viper.GetString("smtp.address")
	if smtpEnabled && smtpAddress == "" {
		return nil, fmt.Errorf("smtp.address is required when smtp.enabled is true")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Tracking: TrackingConfig{
			BaseURL:       baseURL,
			CodeLength:    codeLength,
			PixelCacheTTL: pixelCacheTTL,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		SMTP: SMTPConfig{
			Enabled:  smtpEnabled,
			Address:  smtpAddress,
			From:     viper.GetString("smtp.from"),
			Username: viper.GetString("smtp.username"),
			Password: viper.GetString("smtp.password"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//   1. 当前目录的 .env
//   2. 父目录的 .env（用于从子目录运行的情况）
//
// 如果文件不存在，静默失败（.env 是可选的）；
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
