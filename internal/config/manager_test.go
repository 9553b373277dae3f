package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "admin_chat_id": 42},
  "logging": {"level": "INFO", "console": true},
  "scheduler": {"enabled": true, "interval": "60s", "timezone": "Asia/Jakarta"},
  "storage": {"driver": "file", "path": "./data/tasks.json"}
}`

const validYAML = `telegram:
  token: "123:abc"
logging:
  level: DEBUG
  console: true
scheduler:
  enabled: true
  interval: 30s
storage:
  driver: sqlite
  path: ./data/tasks.db
  busy_timeout: 2s
`

func TestLoadJSON(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.AdminChatID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Timezone != "Asia/Jakarta" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() did not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Scheduler.Interval != "30s" {
		t.Fatalf("interval = %q", cfg.Scheduler.Interval)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(validJSON, `"logging"`, `"loging"`, 1)
	m := NewConfigManager(writeConfig(t, "config.json", bad))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "config.json", validJSON+"\n{}"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram:  TelegramConfig{Token: "123:abc"},
			Scheduler: SchedulerConfig{Enabled: true},
			Storage:   StorageConfig{Driver: "file", Path: "./tasks.json"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Nope/Nowhere" }, "scheduler.timezone"},
		{"bad interval", func(c *Config) { c.Scheduler.Interval = "sixty seconds" }, "scheduler.interval"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"missing path", func(c *Config) { c.Storage.Path = " " }, "storage.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", "90s"); err != nil || d.Seconds() != 90 {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "not-a-duration"); err == nil {
		t.Fatal("bad duration accepted")
	}
}
