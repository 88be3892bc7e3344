package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRuleCacheTTL matches spec.md §6's rule-set-cache-invalidation-s default.
	DefaultRuleCacheTTL = time.Hour
	// DefaultChannelCapacity bounds the facts/syslog/event channels absent an override.
	DefaultChannelCapacity = 64

	// DefaultLogLevel controls verbosity for engine logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "fleetalertd.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultAdminAddr is the default bind address for the admin HTTP API.
	DefaultAdminAddr = ":8090"
	// DefaultWebsocketAddr is the default bind address for the subscriber transport.
	DefaultWebsocketAddr = ":8091"
	// DefaultSyslogListenAddr is the default UDP bind address for syslog intake.
	DefaultSyslogListenAddr = ":5514"
)

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// Config captures all runtime tunables for the alerting engine.
type Config struct {
	RuleCacheTTL          time.Duration `yaml:"rule-cache-ttl"`
	FactChannelCapacity   int           `yaml:"fact-channel-capacity"`
	SyslogChannelCapacity int           `yaml:"syslog-channel-capacity"`
	EventChannelCapacity  int           `yaml:"event-channel-capacity"`

	AdminAddr  string `yaml:"admin-addr"`
	AdminToken string `yaml:"admin-token"`

	WebsocketAddr string `yaml:"websocket-addr"`
	JWTSigningKey string `yaml:"jwt-signing-key"`

	SyslogListenAddr string `yaml:"syslog-listen-addr"`

	StoreDSN       string `yaml:"store-dsn"`
	ChatWebhookURL string `yaml:"chat-webhook-url"`

	Logging LoggingConfig `yaml:"logging"`
}

// Load reads the engine configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		RuleCacheTTL:          DefaultRuleCacheTTL,
		FactChannelCapacity:   DefaultChannelCapacity,
		SyslogChannelCapacity: DefaultChannelCapacity,
		EventChannelCapacity:  DefaultChannelCapacity,
		AdminAddr:             getString("FLEETALERT_ADMIN_ADDR", DefaultAdminAddr),
		AdminToken:            strings.TrimSpace(os.Getenv("FLEETALERT_ADMIN_TOKEN")),
		WebsocketAddr:         getString("FLEETALERT_WS_ADDR", DefaultWebsocketAddr),
		JWTSigningKey:         strings.TrimSpace(os.Getenv("FLEETALERT_JWT_SIGNING_KEY")),
		SyslogListenAddr:      getString("FLEETALERT_SYSLOG_ADDR", DefaultSyslogListenAddr),
		StoreDSN:              strings.TrimSpace(os.Getenv("FLEETALERT_STORE_DSN")),
		ChatWebhookURL:        strings.TrimSpace(os.Getenv("FLEETALERT_CHAT_WEBHOOK_URL")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("FLEETALERT_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("FLEETALERT_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_RULE_CACHE_TTL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("FLEETALERT_RULE_CACHE_TTL must be a positive duration, got %q", raw))
		} else {
			cfg.RuleCacheTTL = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_FACT_CHANNEL_CAPACITY")); raw != "" {
		value, err := parsePositiveInt(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLEETALERT_FACT_CHANNEL_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.FactChannelCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_SYSLOG_CHANNEL_CAPACITY")); raw != "" {
		value, err := parsePositiveInt(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLEETALERT_SYSLOG_CHANNEL_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.SyslogChannelCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_EVENT_CHANNEL_CAPACITY")); raw != "" {
		value, err := parsePositiveInt(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLEETALERT_EVENT_CHANNEL_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.EventChannelCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := parsePositiveInt(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLEETALERT_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("FLEETALERT_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("FLEETALERT_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if cfg.StoreDSN == "" {
		problems = append(problems, "FLEETALERT_STORE_DSN is required")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

// LoadFile overlays a YAML document at path onto base, returning the merged
// configuration. base is typically the result of Load, so an operator can
// override only the fields a deployment cares about.
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	merged := *base
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &merged, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parsePositiveInt(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("not a positive integer: %q", raw)
	}
	return value, nil
}
