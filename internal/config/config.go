package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Engagement   EngagementConfig   `yaml:"engagement"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Analytics    AnalyticsConfig    `yaml:"analytics"`
	Tracking     TrackingConfig     `yaml:"tracking"`
	Storage      StorageConfig      `yaml:"storage"`
	Worker       WorkerConfig       `yaml:"worker"`
	LogLevel     string             `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is host:port for ListenAndServe.
func (c ServerConfig) Addr() string {
	return c.GetHost() + ":" + strconv.Itoa(c.Port)
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the Redis connection used for the dispatch queue and
// the worker lock. An empty URL disables both; the worker then locks with
// Postgres advisory locks and payloads are only logged.
type RedisConfig struct {
	URL         string `yaml:"url"`
	DispatchKey string `yaml:"dispatch_key"`
}

// EngagementConfig holds the eligibility rules
type EngagementConfig struct {
	InactivitySeconds int `yaml:"inactivity_seconds"`
	FrequencyHours    int `yaml:"frequency_hours"`
}

func (c EngagementConfig) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivitySeconds) * time.Second
}

func (c EngagementConfig) FrequencyWindow() time.Duration {
	return time.Duration(c.FrequencyHours) * time.Hour
}

// ProfileConfig describes one segmentation profile. Thresholds are in Unit
// ("minutes", "hours" or "days").
type ProfileConfig struct {
	Unit               string  `yaml:"unit"`
	DormantThreshold   float64 `yaml:"dormant_threshold"`
	SecondaryThreshold float64 `yaml:"secondary_threshold"`
	Rule               string  `yaml:"rule"` // "loyal_at_least" or "new_user_below"

	// Tones overrides the segment to tone mapping, e.g. {loyal: playful}.
	Tones map[string]string `yaml:"tones"`
}

// SegmentationConfig holds the engagement and utility profiles
type SegmentationConfig struct {
	Engagement ProfileConfig `yaml:"engagement"`
	Utility    ProfileConfig `yaml:"utility"`
}

// AnalyticsConfig holds reporting settings
type AnalyticsConfig struct {
	WindowDays int     `yaml:"window_days"`
	Tolerance  float64 `yaml:"tolerance"` // score difference treated as a tie
	Archive    bool    `yaml:"archive"`
}

// TrackingConfig holds the open/click tracking service settings
type TrackingConfig struct {
	Port     int    `yaml:"port"`
	BaseURL  string `yaml:"base_url"`
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
	Secret   string `yaml:"secret"`
}

// StorageConfig holds report archive configuration
type StorageConfig struct {
	Type           string `yaml:"type"`
	LocalPath      string `yaml:"local_path"`
	S3Bucket       string `yaml:"s3_bucket"`
	DynamoDBTable  string `yaml:"dynamodb_table"`
	AWSRegion      string `yaml:"aws_region"`
	AWSProfile     string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	HistoryTTLDays int    `yaml:"history_ttl_days"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// HistoryTTL is how long recommendation history items live in DynamoDB.
func (c StorageConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLDays) * 24 * time.Hour
}

// WorkerConfig holds the background cycle settings
type WorkerConfig struct {
	CycleIntervalSeconds  int    `yaml:"cycle_interval_seconds"`
	ReportIntervalMinutes int    `yaml:"report_interval_minutes"`
	LockKey               string `yaml:"lock_key"`
	LockTTLSeconds        int    `yaml:"lock_ttl_seconds"`

	// DeliveryWebhookURL receives dispatched payloads. Empty logs them instead.
	DeliveryWebhookURL string `yaml:"delivery_webhook_url"`
	DeliveryRetries    int    `yaml:"delivery_retries"`
}

func (c WorkerConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

func (c WorkerConfig) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalMinutes) * time.Minute
}

func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Redis.DispatchKey == "" {
		cfg.Redis.DispatchKey = "engagement:dispatch"
	}
	if cfg.Engagement.InactivitySeconds == 0 {
		cfg.Engagement.InactivitySeconds = 60
	}
	if cfg.Engagement.FrequencyHours == 0 {
		cfg.Engagement.FrequencyHours = 24
	}
	// Segmentation defaults
	p := &cfg.Segmentation.Engagement
	if p.Unit == "" {
		p.Unit = "minutes"
	}
	if p.DormantThreshold == 0 {
		p.DormantThreshold = 60
	}
	if p.SecondaryThreshold == 0 {
		p.SecondaryThreshold = 5
	}
	if p.Rule == "" {
		p.Rule = "loyal_at_least"
	}
	p = &cfg.Segmentation.Utility
	if p.Unit == "" {
		p.Unit = "days"
	}
	if p.DormantThreshold == 0 {
		p.DormantThreshold = 3
	}
	if p.SecondaryThreshold == 0 {
		p.SecondaryThreshold = 7
	}
	if p.Rule == "" {
		p.Rule = "new_user_below"
	}
	if cfg.Analytics.WindowDays == 0 {
		cfg.Analytics.WindowDays = 7
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = "us-west-2"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Storage.HistoryTTLDays == 0 {
		cfg.Storage.HistoryTTLDays = 90
	}
	if cfg.Worker.CycleIntervalSeconds == 0 {
		cfg.Worker.CycleIntervalSeconds = 60
	}
	if cfg.Worker.ReportIntervalMinutes == 0 {
		cfg.Worker.ReportIntervalMinutes = 60
	}
	if cfg.Worker.LockKey == "" {
		cfg.Worker.LockKey = "engagement-cycle"
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 300
	}
	if cfg.Worker.DeliveryRetries == 0 {
		cfg.Worker.DeliveryRetries = 3
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS. An empty
// path skips the file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.QueueURL = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SECRET"); v != "" {
		cfg.Tracking.Secret = v
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("STORAGE_DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("DELIVERY_WEBHOOK_URL"); v != "" {
		cfg.Worker.DeliveryWebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}
