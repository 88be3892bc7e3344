package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FLEETALERT_ADMIN_ADDR",
		"FLEETALERT_ADMIN_TOKEN",
		"FLEETALERT_WS_ADDR",
		"FLEETALERT_SYSLOG_ADDR",
		"FLEETALERT_STORE_DSN",
		"FLEETALERT_CHAT_WEBHOOK_URL",
		"FLEETALERT_JWT_SIGNING_KEY",
		"FLEETALERT_LOG_LEVEL",
		"FLEETALERT_LOG_PATH",
		"FLEETALERT_RULE_CACHE_TTL",
		"FLEETALERT_FACT_CHANNEL_CAPACITY",
		"FLEETALERT_SYSLOG_CHANNEL_CAPACITY",
		"FLEETALERT_EVENT_CHANNEL_CAPACITY",
		"FLEETALERT_LOG_MAX_SIZE_MB",
		"FLEETALERT_LOG_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLEETALERT_STORE_DSN", "postgres://localhost/fleetalert")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.AdminAddr != DefaultAdminAddr {
		t.Fatalf("expected default admin addr %q, got %q", DefaultAdminAddr, cfg.AdminAddr)
	}
	if cfg.WebsocketAddr != DefaultWebsocketAddr {
		t.Fatalf("expected default websocket addr %q, got %q", DefaultWebsocketAddr, cfg.WebsocketAddr)
	}
	if cfg.SyslogListenAddr != DefaultSyslogListenAddr {
		t.Fatalf("expected default syslog listen addr %q, got %q", DefaultSyslogListenAddr, cfg.SyslogListenAddr)
	}
	if cfg.RuleCacheTTL != DefaultRuleCacheTTL {
		t.Fatalf("expected default rule cache ttl %v, got %v", DefaultRuleCacheTTL, cfg.RuleCacheTTL)
	}
	if cfg.FactChannelCapacity != DefaultChannelCapacity || cfg.SyslogChannelCapacity != DefaultChannelCapacity || cfg.EventChannelCapacity != DefaultChannelCapacity {
		t.Fatalf("expected default channel capacities, got %+v", cfg)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected admin token to be empty by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLEETALERT_STORE_DSN", "postgres://localhost/fleetalert")
	t.Setenv("FLEETALERT_ADMIN_ADDR", "127.0.0.1:9000")
	t.Setenv("FLEETALERT_ADMIN_TOKEN", "s3cret")
	t.Setenv("FLEETALERT_WS_ADDR", "127.0.0.1:9001")
	t.Setenv("FLEETALERT_SYSLOG_ADDR", "127.0.0.1:9002")
	t.Setenv("FLEETALERT_RULE_CACHE_TTL", "5m")
	t.Setenv("FLEETALERT_FACT_CHANNEL_CAPACITY", "128")
	t.Setenv("FLEETALERT_SYSLOG_CHANNEL_CAPACITY", "256")
	t.Setenv("FLEETALERT_EVENT_CHANNEL_CAPACITY", "32")
	t.Setenv("FLEETALERT_LOG_LEVEL", "debug")
	t.Setenv("FLEETALERT_LOG_PATH", "/var/log/fleetalertd.log")
	t.Setenv("FLEETALERT_LOG_MAX_SIZE_MB", "512")
	t.Setenv("FLEETALERT_LOG_COMPRESS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.AdminAddr != "127.0.0.1:9000" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("expected overridden admin token, got %q", cfg.AdminToken)
	}
	if cfg.WebsocketAddr != "127.0.0.1:9001" {
		t.Fatalf("unexpected websocket addr: %q", cfg.WebsocketAddr)
	}
	if cfg.SyslogListenAddr != "127.0.0.1:9002" {
		t.Fatalf("unexpected syslog listen addr: %q", cfg.SyslogListenAddr)
	}
	if cfg.RuleCacheTTL != 5*time.Minute {
		t.Fatalf("expected rule cache ttl 5m, got %v", cfg.RuleCacheTTL)
	}
	if cfg.FactChannelCapacity != 128 || cfg.SyslogChannelCapacity != 256 || cfg.EventChannelCapacity != 32 {
		t.Fatalf("unexpected channel capacities: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Path != "/var/log/fleetalertd.log" {
		t.Fatalf("unexpected log path %q", cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != 512 {
		t.Fatalf("expected log max size 512, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLEETALERT_RULE_CACHE_TTL", "abc")
	t.Setenv("FLEETALERT_FACT_CHANNEL_CAPACITY", "-1")
	t.Setenv("FLEETALERT_LOG_MAX_SIZE_MB", "0")
	t.Setenv("FLEETALERT_LOG_COMPRESS", "notabool")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"FLEETALERT_RULE_CACHE_TTL",
		"FLEETALERT_FACT_CHANNEL_CAPACITY",
		"FLEETALERT_LOG_MAX_SIZE_MB",
		"FLEETALERT_LOG_COMPRESS",
		"FLEETALERT_STORE_DSN",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadRequiresStoreDSN(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "FLEETALERT_STORE_DSN") {
		t.Fatalf("expected missing store dsn error, got %v", err)
	}
}

func TestLoadFileOverlaysYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLEETALERT_STORE_DSN", "postgres://localhost/fleetalert")

	base, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	path := writeTempYAML(t, "admin-addr: \":9999\"\nlogging:\n  level: warn\n")
	merged, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("LoadFile() returned error: %v", err)
	}
	if merged.AdminAddr != ":9999" {
		t.Fatalf("expected overridden admin addr, got %q", merged.AdminAddr)
	}
	if merged.Logging.Level != "warn" {
		t.Fatalf("expected overridden log level, got %q", merged.Logging.Level)
	}
	if merged.StoreDSN != base.StoreDSN {
		t.Fatalf("expected fields absent from YAML to survive from base, got %q", merged.StoreDSN)
	}
}

func writeTempYAML(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp("", "fleetalert-config-test-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(contents); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { _ = os.Remove(name) })
	return name
}
