package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Storage       StorageConfig
	Tracing       TracingConfig `mapstructure:"tracing"`
	Redis         RedisConfig
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Platform      PlatformConfig      `mapstructure:"platform"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Credential    CredentialConfig    `mapstructure:"credential"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
	Seed         bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// StorageConfig 证书归档存储（local / minio）
type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// PlatformConfig 描述平台自身（本地课程管理器）在 Beckn 网络中的身份
type PlatformConfig struct {
	BppID string `mapstructure:"bpp_id"`
}

// CollaboratorsConfig 外部协作服务的基础地址与调用策略
type CollaboratorsConfig struct {
	WalletURL         string        `mapstructure:"wallet_url"`
	CourseManagerURL  string        `mapstructure:"course_manager_url"`
	BapURL            string        `mapstructure:"bap_url"`
	CredentialURL     string        `mapstructure:"credential_url"`
	PassbookURL       string        `mapstructure:"passbook_url"`
	UserServiceURL    string        `mapstructure:"user_service_url"`
	RequestServiceURL string        `mapstructure:"request_service_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryCount        int           `mapstructure:"retry_count"`
}

type CredentialConfig struct {
	IssuerDID     string `mapstructure:"issuer_did"`
	SchemaDID     string `mapstructure:"schema_did"`
	SchemaVersion string `mapstructure:"schema_version"`
	ValidityYears int    `mapstructure:"validity_years"`
}

// CollaboratorRetryMaxWait 两次重试之间的最长等待
const CollaboratorRetryMaxWait = 2 * time.Second

// purchaseCallChain 一次购买在锁内串行调用的协作服务次数
const purchaseCallChain = 4

// CallBudget 单次协作调用含全部重试的最长耗时
func (c CollaboratorsConfig) CallBudget() time.Duration {
	retries := time.Duration(c.RetryCount)
	return c.Timeout*(retries+1) + CollaboratorRetryMaxWait*retries
}

type SettlementConfig struct {
	ReconcileSpec string        `mapstructure:"reconcile_spec"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	BatchSize     int           `mapstructure:"batch_size"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type WebhookConfig struct {
	APIKey string `mapstructure:"api_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "certificates")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("platform.bpp_id", "compass.bpp.course_manager")
	v.SetDefault("collaborators.timeout", 10*time.Second)
	v.SetDefault("collaborators.retry_count", 2)
	v.SetDefault("credential.validity_years", 10)
	v.SetDefault("settlement.reconcile_spec", "@every 1m")
	v.SetDefault("settlement.max_attempts", 5)
	v.SetDefault("settlement.grace_period", time.Minute)
	v.SetDefault("settlement.batch_size", 50)
	v.SetDefault("settlement.lock_ttl", 3*time.Minute)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT / webhook
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("webhook.api_key", "WEBHOOK_API_KEY")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("server.mode", "SERVER_MODE")

	// 协作服务地址
	v.BindEnv("collaborators.wallet_url", "WALLET_SERVICE_URL")
	v.BindEnv("collaborators.course_manager_url", "COURSE_MANAGER_URL")
	v.BindEnv("collaborators.bap_url", "BAP_URI")
	v.BindEnv("collaborators.credential_url", "CREDENTIAL_SERVICE_URL")
	v.BindEnv("collaborators.passbook_url", "PASSBOOK_SERVICE_URL")
	v.BindEnv("collaborators.user_service_url", "USER_SERVICE_URL")
	v.BindEnv("collaborators.request_service_url", "REQUEST_SERVICE_URL")

	v.BindEnv("credential.issuer_did", "CREDENTIAL_ISSUER_DID")
	v.BindEnv("credential.schema_did", "CREDENTIAL_SCHEMA_DID")
	v.BindEnv("credential.schema_version", "CREDENTIAL_SCHEMA_VERSION")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 启动时一次性校验，缺失任何必需的协作服务地址即失败
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"collaborators.wallet_url":          c.Collaborators.WalletURL,
		"collaborators.course_manager_url":  c.Collaborators.CourseManagerURL,
		"collaborators.bap_url":             c.Collaborators.BapURL,
		"collaborators.credential_url":      c.Collaborators.CredentialURL,
		"collaborators.passbook_url":        c.Collaborators.PassbookURL,
		"collaborators.user_service_url":    c.Collaborators.UserServiceURL,
		"collaborators.request_service_url": c.Collaborators.RequestServiceURL,
		"platform.bpp_id":                   c.Platform.BppID,
		"jwt.secret":                        c.JWT.Secret,
		"webhook.api_key":                   c.Webhook.APIKey,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Collaborators.Timeout <= 0 {
		return fmt.Errorf("collaborators.timeout must be positive")
	}
	if c.Settlement.MaxAttempts <= 0 {
		return fmt.Errorf("settlement.max_attempts must be positive")
	}
	if c.Collaborators.RetryCount < 0 {
		return fmt.Errorf("collaborators.retry_count must not be negative")
	}
	// 锁过期后重复请求会以新的幂等键再次下单
	if c.Settlement.LockTTL <= 0 {
		return fmt.Errorf("settlement.lock_ttl must be positive")
	}
	if budget := c.Collaborators.CallBudget() * purchaseCallChain; c.Settlement.LockTTL < budget {
		return fmt.Errorf("settlement.lock_ttl %s is shorter than the purchase worst case %s", c.Settlement.LockTTL, budget)
	}

	return nil
}
