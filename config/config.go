package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Control    ControlConfig    `yaml:"control"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Retention  RetentionConfig  `yaml:"retention"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	StaticDir       string  `yaml:"static_dir"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite, postgres or mysql
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// ControlConfig holds the command engine settings.
type ControlConfig struct {
	// Locale selects the language of audit log messages ("zh" or "en").
	Locale string `yaml:"locale"`
	// Timezone is the zone schedule times are evaluated in.
	Timezone string `yaml:"timezone"`
}

// SchedulerConfig holds the schedule reconciliation settings.
type SchedulerConfig struct {
	ReloadIntervalSeconds int           `yaml:"reload_interval_seconds"`
	ReloadInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// RetentionConfig holds the audit log housekeeping settings.
type RetentionConfig struct {
	Days            int           `yaml:"days"`
	IntervalMinutes int           `yaml:"interval_minutes"`
	Horizon         time.Duration `yaml:"-"`
	Interval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// MQTTConfig holds the optional event mirror settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = "public"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "./curtain.db"
	}

	if cfg.Control.Locale == "" {
		cfg.Control.Locale = "zh"
	}
	if cfg.Control.Timezone == "" {
		cfg.Control.Timezone = "Local"
	}

	if cfg.Scheduler.ReloadIntervalSeconds <= 0 {
		cfg.Scheduler.ReloadIntervalSeconds = 60
	}
	cfg.Scheduler.ReloadInterval = time.Duration(cfg.Scheduler.ReloadIntervalSeconds) * time.Second

	if cfg.Retention.Days <= 0 {
		cfg.Retention.Days = 7
	}
	if cfg.Retention.IntervalMinutes <= 0 {
		cfg.Retention.IntervalMinutes = 60
	}
	cfg.Retention.Horizon = time.Duration(cfg.Retention.Days) * 24 * time.Hour
	cfg.Retention.Interval = time.Duration(cfg.Retention.IntervalMinutes) * time.Minute

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "shutter"
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		cfg.MQTT.QoS = 1
	}
}
