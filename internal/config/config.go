// Package config provides configuration management for the application.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Encryption  EncryptionConfig
	HealthCheck HealthCheckConfig
	Failover    FailoverConfig
	Scoring     ScoringConfig
	Alert       AlertConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string
	Mode string
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// EncryptionConfig holds encryption configuration for account credentials.
type EncryptionConfig struct {
	Key string // 32-byte key for AES-256 encryption
}

// HealthCheckConfig holds health assessment configuration.
//
// Interval doubles as the TTL of the router's health-result cache so routing
// never acts on results older than one assessment cycle.
type HealthCheckConfig struct {
	Enabled        bool
	Interval       time.Duration
	Timeout        time.Duration
	RetryCount     int
	AlertThreshold float64 // minimum success rate before an account is unhealthy
}

// FailoverConfig holds failover controller configuration.
type FailoverConfig struct {
	Enabled                 bool
	MonitorInterval         time.Duration
	ConsecutiveFailureLimit int
	RecoveryInterval        time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	AttemptTimeout          time.Duration
}

// ScoringConfig holds the routing score weights. These are tunables, not
// fixed law; the defaults reproduce the reference behavior.
type ScoringConfig struct {
	PriorityWeight   float64
	HealthyBonus     float64
	UnhealthyPenalty float64
	RegionBonus      float64
}

// AlertConfig holds alert notification configuration.
type AlertConfig struct {
	Enabled    bool
	WebhookURL string
}

// JWTConfig holds JWT authentication configuration for admin endpoints.
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Try to read .env file, but don't fail if it doesn't exist. When
	// running in Docker, environment variables are set directly.
	if err := viper.ReadInConfig(); err != nil {
		_ = err
	}

	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Mode: viper.GetString("GIN_MODE"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
		},
		Encryption: EncryptionConfig{
			Key: viper.GetString("ENCRYPTION_KEY"),
		},
		HealthCheck: HealthCheckConfig{
			Enabled:        viper.GetBool("HEALTH_CHECK_ENABLED"),
			Interval:       time.Duration(viper.GetInt("HEALTH_CHECK_INTERVAL")) * time.Second,
			Timeout:        time.Duration(viper.GetInt("HEALTH_CHECK_TIMEOUT")) * time.Second,
			RetryCount:     viper.GetInt("HEALTH_CHECK_RETRY_COUNT"),
			AlertThreshold: viper.GetFloat64("HEALTH_ALERT_THRESHOLD"),
		},
		Failover: FailoverConfig{
			Enabled:                 viper.GetBool("FAILOVER_ENABLED"),
			MonitorInterval:         time.Duration(viper.GetInt("FAILOVER_MONITOR_INTERVAL")) * time.Second,
			ConsecutiveFailureLimit: viper.GetInt("FAILOVER_CONSECUTIVE_FAILURES"),
			RecoveryInterval:        time.Duration(viper.GetInt("FAILOVER_RECOVERY_INTERVAL")) * time.Second,
			MaxRetries:              viper.GetInt("FAILOVER_MAX_RETRIES"),
			RetryDelay:              time.Duration(viper.GetInt("FAILOVER_RETRY_DELAY_MS")) * time.Millisecond,
			AttemptTimeout:          time.Duration(viper.GetInt("FAILOVER_ATTEMPT_TIMEOUT_MS")) * time.Millisecond,
		},
		Scoring: ScoringConfig{
			PriorityWeight:   viper.GetFloat64("SCORING_PRIORITY_WEIGHT"),
			HealthyBonus:     viper.GetFloat64("SCORING_HEALTHY_BONUS"),
			UnhealthyPenalty: viper.GetFloat64("SCORING_UNHEALTHY_PENALTY"),
			RegionBonus:      viper.GetFloat64("SCORING_REGION_BONUS"),
		},
		Alert: AlertConfig{
			Enabled:    viper.GetBool("ALERT_ENABLED"),
			WebhookURL: viper.GetString("ALERT_WEBHOOK_URL"),
		},
		JWT: JWTConfig{
			Secret:    viper.GetString("JWT_SECRET"),
			ExpiresIn: viper.GetDuration("JWT_EXPIRES_IN"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
		},
	}

	return cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GIN_MODE", "release")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("HEALTH_CHECK_ENABLED", true)
	viper.SetDefault("HEALTH_CHECK_INTERVAL", 60)
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", 10)
	viper.SetDefault("HEALTH_CHECK_RETRY_COUNT", 3)
	viper.SetDefault("HEALTH_ALERT_THRESHOLD", 0.8)
	viper.SetDefault("FAILOVER_ENABLED", true)
	viper.SetDefault("FAILOVER_MONITOR_INTERVAL", 60)
	viper.SetDefault("FAILOVER_CONSECUTIVE_FAILURES", 3)
	viper.SetDefault("FAILOVER_RECOVERY_INTERVAL", 300)
	viper.SetDefault("FAILOVER_MAX_RETRIES", 3)
	viper.SetDefault("FAILOVER_RETRY_DELAY_MS", 1000)
	viper.SetDefault("FAILOVER_ATTEMPT_TIMEOUT_MS", 30000)
	viper.SetDefault("SCORING_PRIORITY_WEIGHT", 0.4)
	viper.SetDefault("SCORING_HEALTHY_BONUS", 30)
	viper.SetDefault("SCORING_UNHEALTHY_PENALTY", -50)
	viper.SetDefault("SCORING_REGION_BONUS", 5)
	viper.SetDefault("ALERT_ENABLED", true)
	viper.SetDefault("JWT_EXPIRES_IN", "24h")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("METRICS_ENABLED", true)
}

// GetDSN returns the database connection string.
func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode
}
