package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Vault     VaultConfig
	Ingestion IngestionConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings for the API surface
type JWTConfig struct {
	Secret               string
	AccessTokenExpiration time.Duration
	Issuer               string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// StorageConfig selects and configures the XML archive backend
type StorageConfig struct {
	// Backend is "fs" or "s3"
	Backend string
	// Root is the filesystem root for the fs backend
	Root string
	// S3 settings, compatible with any S3 API (AWS, MinIO, RustFS)
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	// RetentionYears bounds the retention sweep
	RetentionYears int
}

// VaultConfig holds certificate vault settings
type VaultConfig struct {
	// MasterKey is the hex-encoded 32-byte sealing key
	MasterKey string
	// PreviousMasterKey, when set, lets the rotation command rewrap records
	PreviousMasterKey string
	// ExpiryWarningDays is the certificate expiry warning window
	ExpiryWarningDays int
}

// IngestionConfig bounds one ingestion run
type IngestionConfig struct {
	// MaxDocumentsPerRun caps how many documents one run processes
	MaxDocumentsPerRun int
	// RequestTimeout applies to each outbound SOAP/REST call
	RequestTimeout time.Duration
	// RetryMax bounds the exponential backoff attempts per call
	RetryMax int
	// RetryBaseDelay is the first backoff step
	RetryBaseDelay time.Duration
	// RetryMaxDelay is the backoff ceiling
	RetryMaxDelay time.Duration
	// Environment selects SEFAZ production or homologation endpoints
	Environment string
	// UFAutor is the IBGE federal unit code sent as cUFAutor
	UFAutor string
	// NFSeNationalURL, when set, enables the national NFS-e provider
	NFSeNationalURL string
}

// SchedulerConfig holds the ingestion scheduler settings
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	MaxConcurrent int
	RunTimeout    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with FISCAL_ prefix (e.g., FISCAL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Backend:        v.GetString("storage.backend"),
			Root:           v.GetString("storage.root"),
			Endpoint:       v.GetString("storage.endpoint"),
			Region:         v.GetString("storage.region"),
			Bucket:         v.GetString("storage.bucket"),
			AccessKey:      v.GetString("storage.access_key"),
			SecretKey:      v.GetString("storage.secret_key"),
			UseSSL:         v.GetBool("storage.use_ssl"),
			UsePathStyle:   v.GetBool("storage.use_path_style"),
			RetentionYears: v.GetInt("storage.retention_years"),
		},
		Vault: VaultConfig{
			MasterKey:         v.GetString("vault.master_key"),
			PreviousMasterKey: v.GetString("vault.previous_master_key"),
			ExpiryWarningDays: v.GetInt("vault.expiry_warning_days"),
		},
		Ingestion: IngestionConfig{
			MaxDocumentsPerRun: v.GetInt("ingestion.max_documents_per_run"),
			RequestTimeout:     v.GetDuration("ingestion.request_timeout"),
			RetryMax:           v.GetInt("ingestion.retry_max"),
			RetryBaseDelay:     v.GetDuration("ingestion.retry_base_delay"),
			RetryMaxDelay:      v.GetDuration("ingestion.retry_max_delay"),
			Environment:        v.GetString("ingestion.environment"),
			UFAutor:            v.GetString("ingestion.uf_autor"),
			NFSeNationalURL:    v.GetString("ingestion.nfse_national_url"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Interval:      v.GetDuration("scheduler.interval"),
			MaxConcurrent: v.GetInt("scheduler.max_concurrent"),
			RunTimeout:    v.GetDuration("scheduler.run_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fiscal-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "fiscal"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = cfg.App.Name
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./data/xml"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.RetentionYears == 0 {
		cfg.Storage.RetentionYears = 7
	}
	if cfg.Vault.ExpiryWarningDays == 0 {
		cfg.Vault.ExpiryWarningDays = 30
	}
	if cfg.Ingestion.MaxDocumentsPerRun == 0 {
		cfg.Ingestion.MaxDocumentsPerRun = 500
	}
	if cfg.Ingestion.RequestTimeout == 0 {
		cfg.Ingestion.RequestTimeout = 30 * time.Second
	}
	if cfg.Ingestion.RetryMax == 0 {
		cfg.Ingestion.RetryMax = 4
	}
	if cfg.Ingestion.RetryBaseDelay == 0 {
		cfg.Ingestion.RetryBaseDelay = 2 * time.Second
	}
	if cfg.Ingestion.RetryMaxDelay == 0 {
		cfg.Ingestion.RetryMaxDelay = 60 * time.Second
	}
	if cfg.Ingestion.Environment == "" {
		cfg.Ingestion.Environment = "homologation"
	}
	if cfg.Ingestion.UFAutor == "" {
		cfg.Ingestion.UFAutor = "35"
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.MaxConcurrent == 0 {
		cfg.Scheduler.MaxConcurrent = 4
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 10 * time.Minute
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate checks configuration consistency
func (c *Config) validate() error {
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if c.Vault.MasterKey == "" {
			return fmt.Errorf("vault.master_key is required in production")
		}
	}
	switch c.Storage.Backend {
	case "fs":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Ingestion.Environment {
	case "production", "homologation":
	default:
		return fmt.Errorf("unknown ingestion environment %q", c.Ingestion.Environment)
	}
	return nil
}

// DSN builds the Postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
