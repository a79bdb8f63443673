// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// DatabaseURL empty selects the in-memory store.
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// GeminiAPIKey comes from GEMINI_API_KEY; never put it in the file.
	GeminiAPIKey   string `yaml:"-"`
	GeminiModel    string `yaml:"geminiModel"`
	AIProvider     string `yaml:"aiProvider"` // gemini | openai
	OpenAIBaseURL  string `yaml:"openaiBaseURL"`
	OpenAIAPIKey   string `yaml:"-"`
	OpenAIModel    string `yaml:"openaiModel"`
	RetryMax       int    `yaml:"retryMax"`
	RetryDelayMs   int    `yaml:"retryDelayMs"`

	SessionSecret   string `yaml:"sessionSecret"`
	SessionTTLHours int    `yaml:"sessionTTLHours"`

	QueueBackend     string `yaml:"queueBackend"` // redis | amqp
	QueueStream      string `yaml:"queueStream"`
	QueueGroup       string `yaml:"queueGroup"`
	QueueConcurrency int    `yaml:"queueConcurrency"`
	QueueMaxRetries  int    `yaml:"queueMaxRetries"`
	AmqpURL          string `yaml:"amqpURL"`
	AmqpQueue        string `yaml:"amqpQueue"`

	StorageBackend string `yaml:"storageBackend"` // minio | disk
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	DiskStoreRoot  string `yaml:"diskStoreRoot"`

	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`

	LoginRateLimit  int      `yaml:"loginRateLimit"`  // per minute per IP
	UploadRateLimit int      `yaml:"uploadRateLimit"` // per minute per user
	ChatRateLimit   int      `yaml:"chatRateLimit"`   // per minute per user
	TrustedProxies  []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("DOCGUARD_AI_PROVIDER"); v != "" {
		cfg.AIProvider = v
	}
	if v := os.Getenv("DOCGUARD_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("DOCGUARD_QUEUE_BACKEND"); v != "" {
		cfg.QueueBackend = v
	}
	if v := os.Getenv("DOCGUARD_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueConcurrency = n
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AmqpURL = v
	}
	if v := os.Getenv("DOCGUARD_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("DOCGUARD_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}

	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "gemini"
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 2000
	}
	if cfg.SessionTTLHours <= 0 {
		cfg.SessionTTLHours = 24
	}
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = "redis"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 2
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "disk"
	}
	if cfg.DiskStoreRoot == "" {
		cfg.DiskStoreRoot = "data/uploads"
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}
	if cfg.UploadRateLimit <= 0 {
		cfg.UploadRateLimit = 20
	}
	if cfg.ChatRateLimit <= 0 {
		cfg.ChatRateLimit = 30
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if cfg.SessionSecret == "" {
		return errors.New("config: sessionSecret is required (set in config.yaml or DOCGUARD_SESSION_SECRET)")
	}
	switch cfg.AIProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: GEMINI_API_KEY is required for aiProvider=gemini")
		}
	case "openai":
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return errors.New("config: openaiBaseURL is required for aiProvider=openai")
		}
		if cfg.OpenAIModel == "" {
			return errors.New("config: openaiModel is required for aiProvider=openai")
		}
	default:
		return fmt.Errorf("config: unknown aiProvider %q (gemini|openai)", cfg.AIProvider)
	}
	switch cfg.QueueBackend {
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for queueBackend=redis (or REDIS_ADDR)")
		}
	case "amqp":
		if cfg.AmqpURL == "" {
			return errors.New("config: amqpURL is required for queueBackend=amqp (or AMQP_URL)")
		}
	default:
		return fmt.Errorf("config: unknown queueBackend %q (redis|amqp)", cfg.QueueBackend)
	}
	switch cfg.StorageBackend {
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for storageBackend=minio")
		}
	case "disk":
	default:
		return fmt.Errorf("config: unknown storageBackend %q (minio|disk)", cfg.StorageBackend)
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required for rate limiting and session revocation")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	return nil
}
