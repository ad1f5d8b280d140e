package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper" // 导入 Viper
)

const (
	DefaultMaxFileSizeBytes       int64 = 1024 * 1024 * 1024
	DefaultMultipartPartSizeBytes int64 = 8 * 1024 * 1024
	MaxMultipartParts                   = 10000
)

// DefaultAllowedMimeTypes 默认允许上传的 MIME 类型
var DefaultAllowedMimeTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
	"text/plain",
	"application/zip",
	"application/x-zip-compressed",
	"application/json",
	"video/mp4",
}

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	S3            S3Config            `mapstructure:"s3"`
	RabbitMQ      RabbitMQConfig      `mapstructure:"rabbitmq"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Cookie        CookieConfig        `mapstructure:"cookie"`
	Upload        UploadConfig        `mapstructure:"upload"`
	ClamAV        ClamAVConfig        `mapstructure:"clamav"`
	Scan          ScanConfig          `mapstructure:"scan"`
	Reaper        ReaperConfig        `mapstructure:"reaper"`
	SMTP          SMTPConfig          `mapstructure:"smtp"`
	Admin         AdminConfig         `mapstructure:"admin"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"` // debug | release | test
	WebBaseURL  string   `mapstructure:"web_base_url"`
	CorsOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | postgres
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Type               string        `mapstructure:"type"` // minio | aliyun_oss | s3
	Bucket             string        `mapstructure:"bucket"`
	PresignedURLExpiry time.Duration `mapstructure:"presigned_url_expiry"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	PublicEndpoint  string `mapstructure:"public_endpoint"` // 预签名URL使用的对外地址，为空则与 endpoint 相同
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: https://oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// S3Config 兼容 S3 协议的对象存储
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	PublicEndpoint  string `mapstructure:"public_endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// RabbitMQConfig RabbitMQ配置
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	AccessSecret          string        `mapstructure:"access_secret"`
	RefreshSecret         string        `mapstructure:"refresh_secret"`
	ShareSecret           string        `mapstructure:"share_secret"`
	UploadSecret          string        `mapstructure:"upload_secret"`
	AccessTokenTTL        time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL       time.Duration `mapstructure:"refresh_token_ttl"`
	ShareVerificationTTL  time.Duration `mapstructure:"share_verification_ttl"`
	PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl"`
	Issuer                string        `mapstructure:"issuer"`
}

type CookieConfig struct {
	Domain string `mapstructure:"domain"`
	Secure bool   `mapstructure:"secure"`
}

// UploadConfig 分块上传策略
type UploadConfig struct {
	MaxFileSize      int64    `mapstructure:"max_file_size"`
	PartSize         int64    `mapstructure:"part_size"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

// IsMimeAllowed 判断 MIME 是否在允许列表中
func (c *UploadConfig) IsMimeAllowed(mime string) bool {
	for _, allowed := range c.AllowedMimeTypes {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

type ClamAVConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScanConfig struct {
	SweepCron  string `mapstructure:"sweep_cron"`
	SweepLimit int    `mapstructure:"sweep_limit"`
}

// ReaperConfig 清理被遗弃的分块上传
type ReaperConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Cron    string        `mapstructure:"cron"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var AppConfig *Config // 全局应用配置实例

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "4000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.web_base_url", "http://localhost:3000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.bucket", "fluxshare-files")
	v.SetDefault("storage.presigned_url_expiry", 900*time.Second)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.force_path_style", true)

	v.SetDefault("jwt.access_token_ttl", 900*time.Second)
	v.SetDefault("jwt.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("jwt.share_verification_ttl", 600*time.Second)
	v.SetDefault("jwt.password_reset_token_ttl", time.Hour)
	v.SetDefault("jwt.issuer", "go-fluxshare")

	v.SetDefault("upload.max_file_size", DefaultMaxFileSizeBytes)
	v.SetDefault("upload.part_size", DefaultMultipartPartSizeBytes)
	v.SetDefault("upload.allowed_mime_types", DefaultAllowedMimeTypes)

	v.SetDefault("clamav.enabled", false)
	v.SetDefault("clamav.host", "localhost")
	v.SetDefault("clamav.port", 3310)
	v.SetDefault("clamav.timeout", 90*time.Second)
	v.SetDefault("scan.sweep_cron", "@every 1m")
	v.SetDefault("scan.sweep_limit", 5)

	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.cron", "@every 1h")
	v.SetDefault("reaper.max_age", 24*time.Hour)

	v.SetDefault("rate_limit.requests_per_second", 2.5)
	v.SetDefault("rate_limit.burst", 150)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("elasticsearch.index", "fluxshare-files")

	v.SetDefault("log.output_path", "logs/app.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// LoadConfig 加载配置，configFile 为空时按默认路径查找 config.yaml
func LoadConfig(configFile string) (*Config, error) {
	// .env 只补充未设置的环境变量
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config") // 配置文件名 (不带扩展名)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/go-fluxshare/")
	}

	// 例如：FLUXSHARE_SERVER_PORT 对应 server.port
	v.SetEnvPrefix("FLUXSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// 配置文件不是必须的，可以完全依赖环境变量
		log.Println("Warning: config file not found, using environment variables and defaults.")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

// 环境变量中的列表以逗号分隔
func normalize(cfg *Config) {
	cfg.Server.CorsOrigins = splitCSV(cfg.Server.CorsOrigins)
	cfg.Upload.AllowedMimeTypes = splitCSV(cfg.Upload.AllowedMimeTypes)
	if len(cfg.Upload.AllowedMimeTypes) == 0 {
		cfg.Upload.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)
	}
	cfg.Elasticsearch.Addresses = splitCSV(cfg.Elasticsearch.Addresses)
	cfg.Admin.Email = strings.ToLower(strings.TrimSpace(cfg.Admin.Email))
}

func splitCSV(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate 校验启动所必需的配置项
func (c *Config) Validate() error {
	secrets := map[string]string{
		"jwt.access_secret":  c.JWT.AccessSecret,
		"jwt.refresh_secret": c.JWT.RefreshSecret,
		"jwt.share_secret":   c.JWT.ShareSecret,
		"jwt.upload_secret":  c.JWT.UploadSecret,
	}
	for key, secret := range secrets {
		if len(secret) < 32 {
			return fmt.Errorf("config: %s must be at least 32 characters", key)
		}
	}

	if c.Upload.PartSize <= 0 || c.Upload.MaxFileSize <= 0 {
		return errors.New("config: upload.part_size and upload.max_file_size must be positive")
	}

	switch c.Storage.Type {
	case "minio":
		if c.MinIO.AccessKeyID == "" || c.MinIO.SecretAccessKey == "" {
			return errors.New("config: missing minio credentials")
		}
	case "aliyun_oss":
		if c.AliyunOSS.AccessKeyID == "" || c.AliyunOSS.SecretAccessKey == "" {
			return errors.New("config: missing aliyun_oss credentials")
		}
	case "s3":
		if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			return errors.New("config: missing s3 credentials")
		}
	default:
		return fmt.Errorf("config: unsupported storage.type %q", c.Storage.Type)
	}

	if c.Admin.Email != "" && c.Admin.Password != "" && len(c.Admin.Password) < 12 {
		return errors.New("config: admin.password must be at least 12 characters")
	}
	return nil
}
