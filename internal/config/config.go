package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the guardian engine service
type Config struct {
	Environment  string             `mapstructure:"environment"`
	Debug        bool               `mapstructure:"debug"`
	Server       ServerConfig       `mapstructure:"server"`
	Analysis     AnalysisConfig     `mapstructure:"analysis"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Inspector    InspectorConfig    `mapstructure:"inspector"`
	Fetcher      FetcherConfig      `mapstructure:"fetcher"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Behavior     BehaviorConfig     `mapstructure:"behavior"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AnalysisConfig contains risk aggregator configuration. The blend weights are
// tunables, not contracts: tests assert ordering properties, not exact scores.
type AnalysisConfig struct {
	OverallTimeout   time.Duration `mapstructure:"overall_timeout"`
	SubTimeout       time.Duration `mapstructure:"sub_timeout"`
	EnableSSLCheck   bool          `mapstructure:"enable_ssl_check"`
	EnableReputation bool          `mapstructure:"enable_reputation"`
	EnableMalware    bool          `mapstructure:"enable_malware"`
	EnableAI         bool          `mapstructure:"enable_ai"`

	// Blend weights applied in the deterministic combination step.
	ContentSignalCap float64 `mapstructure:"content_signal_cap"`
	TransportWeight  float64 `mapstructure:"transport_weight"`
	ReputationWeight float64 `mapstructure:"reputation_weight"`
	MalwareWeight    float64 `mapstructure:"malware_weight"`
	// TrustedDamping halves the heuristic weights for registry-trusted sites.
	TrustedDamping float64 `mapstructure:"trusted_damping"`
}

// ClassifierConfig contains external AI classifier configuration
type ClassifierConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxExcerpt int           `mapstructure:"max_excerpt"`
}

// InspectorConfig contains transport and certificate inspector configuration
type InspectorConfig struct {
	TLSTimeout     time.Duration `mapstructure:"tls_timeout"`
	HeaderTimeout  time.Duration `mapstructure:"header_timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	ExpiryWarnDays int           `mapstructure:"expiry_warn_days"`
}

// FetcherConfig contains page fetcher configuration
type FetcherConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// RegistryConfig seeds the trusted-site registry. Entries are matched exactly
// or as wildcard suffixes ("*.go.th").
type RegistryConfig struct {
	Sites []TrustedSite `mapstructure:"sites"`
}

// TrustedSite describes one trusted registry entry
type TrustedSite struct {
	Pattern      string `mapstructure:"pattern"`
	Organization string `mapstructure:"organization"`
	Category     string `mapstructure:"category"`
}

// BehaviorConfig contains duress detector configuration
type BehaviorConfig struct {
	Store             string        `mapstructure:"store"` // memory, redis
	EMAAlpha          float64       `mapstructure:"ema_alpha"`
	ProfileTTL        time.Duration `mapstructure:"profile_ttl"`
	TypingSpeedBase   float64       `mapstructure:"typing_speed_base"` // chars per minute
	ErrorRateBase     float64       `mapstructure:"error_rate_base"`
	MessageLengthBase float64       `mapstructure:"message_length_base"`
	DaytimeStartHour  int           `mapstructure:"daytime_start_hour"`
	DaytimeEndHour    int           `mapstructure:"daytime_end_hour"`
	ElderlyThreshold  float64       `mapstructure:"elderly_threshold"`
	DuressThreshold   float64       `mapstructure:"duress_threshold"`
}

// OrchestratorConfig contains real-time orchestrator configuration
type OrchestratorConfig struct {
	EventTTL             time.Duration `mapstructure:"event_ttl"`
	ThreatAlertTTL       time.Duration `mapstructure:"threat_alert_ttl"`
	DuressAlertTTL       time.Duration `mapstructure:"duress_alert_ttl"`
	FamilyAlertTTL       time.Duration `mapstructure:"family_alert_ttl"`
	SweepSchedule        string        `mapstructure:"sweep_schedule"`
	MetricsSchedule      string        `mapstructure:"metrics_schedule"`
	ProfileSweepSchedule string        `mapstructure:"profile_sweep_schedule"`
}

// KafkaConfig contains event publishing configuration
type KafkaConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Brokers []string     `mapstructure:"brokers"`
	Topics  TopicsConfig `mapstructure:"topics"`
}

// TopicsConfig contains Kafka topic configuration
type TopicsConfig struct {
	ThreatEvents       string `mapstructure:"threat_events"`
	AlertNotifications string `mapstructure:"alert_notifications"`
	MetricsDaily       string `mapstructure:"metrics_daily"`
}

// RedisConfig contains Redis configuration for the optional profile store backing
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/guardian-engine")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GUARDIAN")

	// Config file is optional; defaults plus env cover the common case
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Analysis.OverallTimeout <= 0 {
		return fmt.Errorf("analysis.overall_timeout must be positive")
	}
	if c.Analysis.SubTimeout > c.Analysis.OverallTimeout {
		return fmt.Errorf("analysis.sub_timeout must not exceed analysis.overall_timeout")
	}
	if c.Behavior.EMAAlpha <= 0 || c.Behavior.EMAAlpha > 1 {
		return fmt.Errorf("behavior.ema_alpha must be in (0, 1]")
	}
	if c.Behavior.Store != "memory" && c.Behavior.Store != "redis" {
		return fmt.Errorf("behavior.store must be memory or redis, got %q", c.Behavior.Store)
	}
	if c.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must not be negative")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// General
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8087)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "20s")

	// Analysis
	viper.SetDefault("analysis.overall_timeout", "30s")
	viper.SetDefault("analysis.sub_timeout", "10s")
	viper.SetDefault("analysis.enable_ssl_check", true)
	viper.SetDefault("analysis.enable_reputation", true)
	viper.SetDefault("analysis.enable_malware", true)
	viper.SetDefault("analysis.enable_ai", false)
	viper.SetDefault("analysis.content_signal_cap", 0.25)
	viper.SetDefault("analysis.transport_weight", 0.25)
	viper.SetDefault("analysis.reputation_weight", 0.30)
	viper.SetDefault("analysis.malware_weight", 0.20)
	viper.SetDefault("analysis.trusted_damping", 0.5)

	// Classifier
	viper.SetDefault("classifier.endpoint", "")
	viper.SetDefault("classifier.model", "typhoon-v2")
	viper.SetDefault("classifier.timeout", "8s")
	viper.SetDefault("classifier.max_excerpt", 2000)

	// Inspector
	viper.SetDefault("inspector.tls_timeout", "10s")
	viper.SetDefault("inspector.header_timeout", "10s")
	viper.SetDefault("inspector.max_redirects", 5)
	viper.SetDefault("inspector.expiry_warn_days", 30)

	// Fetcher
	viper.SetDefault("fetcher.timeout", "10s")
	viper.SetDefault("fetcher.max_redirects", 5)
	viper.SetDefault("fetcher.max_body_bytes", 1<<20)
	viper.SetDefault("fetcher.user_agent", "GuardianEngine/1.0")

	// Behavior
	viper.SetDefault("behavior.store", "memory")
	viper.SetDefault("behavior.ema_alpha", 0.1)
	viper.SetDefault("behavior.profile_ttl", "720h") // 30 days
	viper.SetDefault("behavior.typing_speed_base", 45.0)
	viper.SetDefault("behavior.error_rate_base", 0.08)
	viper.SetDefault("behavior.message_length_base", 25.0)
	viper.SetDefault("behavior.daytime_start_hour", 6)
	viper.SetDefault("behavior.daytime_end_hour", 22)
	viper.SetDefault("behavior.elderly_threshold", 0.6)
	viper.SetDefault("behavior.duress_threshold", 0.4)

	// Orchestrator
	viper.SetDefault("orchestrator.event_ttl", "24h")
	viper.SetDefault("orchestrator.threat_alert_ttl", "24h")
	viper.SetDefault("orchestrator.duress_alert_ttl", "2h")
	viper.SetDefault("orchestrator.family_alert_ttl", "6h")
	viper.SetDefault("orchestrator.sweep_schedule", "0 0 * * * *")          // hourly
	viper.SetDefault("orchestrator.metrics_schedule", "0 0 0 * * *")        // daily
	viper.SetDefault("orchestrator.profile_sweep_schedule", "0 30 3 * * *") // daily, off-peak

	// Kafka
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.threat_events", "threat-events")
	viper.SetDefault("kafka.topics.alert_notifications", "alert-notifications")
	viper.SetDefault("kafka.topics.metrics_daily", "metrics-daily")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
