package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{
		"telegram": {"token": "123:abc", "poll_timeout": "10s"},
		"engine": {"workers": 3},
		"admission": {"cooldown": "5m", "daily_limit": 10},
		"media": {"quality_ceiling": 480, "size_limit_mb": 50}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Engine.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Engine.Workers)
	}
	if cfg.Media.QualityCeiling != 480 {
		t.Errorf("quality ceiling = %d, want 480", cfg.Media.QualityCeiling)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
admission:
  cooldown: 2m
  daily_limit: 4
janitor:
  enabled: true
  schedule: "30 4 * * *"
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admission.Cooldown != "2m" || cfg.Admission.DailyLimit != 4 {
		t.Errorf("admission = %+v", cfg.Admission)
	}
	if !cfg.Janitor.Enabled || cfg.Janitor.Schedule != "30 4 * * *" {
		t.Errorf("janitor = %+v", cfg.Janitor)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"telegram": {"token": "x", "tokenn": "typo"}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"telegram": {"token": "x"}}{"extra": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "123:abc"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "minimal ok", mutate: func(*Config) {}},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Telegram.Token = "  " },
			wantErr: "telegram.token",
		},
		{
			name:    "bad cooldown",
			mutate:  func(c *Config) { c.Admission.Cooldown = "soon" },
			wantErr: "admission.cooldown",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Engine.Workers = -1 },
			wantErr: "engine.workers",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres"} },
			wantErr: "storage.driver",
		},
		{
			name:    "bad janitor max_age",
			mutate:  func(c *Config) { c.Janitor.MaxAge = "yesterday" },
			wantErr: "janitor.max_age",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", 5*time.Minute)
	if err != nil || d != 5*time.Minute {
		t.Errorf("empty = (%v, %v), want default", d, err)
	}
	d, err = ParseDurationOrDefault("x", "30s", 5*time.Minute)
	if err != nil || d != 30*time.Second {
		t.Errorf("30s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "-2s", time.Minute); err == nil {
		t.Error("negative duration accepted")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)

	a := &Config{}
	b := &Config{}
	m.publish(a)
	m.publish(b) // buffer full: a is dropped, b delivered

	select {
	case got := <-ch:
		if got != b {
			t.Error("expected newest config after overflow")
		}
	default:
		t.Fatal("no config delivered")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
}
