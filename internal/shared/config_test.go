package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.EndpointURL != "https://example.com/api/create_user" {
			t.Errorf("expected default endpoint, got %s", config.API.EndpointURL)
		}

		if config.API.Timeout.Duration != 10*time.Second {
			t.Errorf("expected timeout 10s, got %v", config.API.Timeout.Duration)
		}

		if config.Retry.BaseDelay.Duration != 2*time.Second {
			t.Errorf("expected base delay 2s, got %v", config.Retry.BaseDelay.Duration)
		}

		if config.Log.File != DefaultEventLogPath {
			t.Errorf("expected log file %s, got %s", DefaultEventLogPath, config.Log.File)
		}

		if config.Database.Path != "./userimport.db" {
			t.Errorf("expected database path ./userimport.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.API.EndpointURL != DefaultConfig().API.EndpointURL {
			t.Errorf("created config endpoint doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[api]
endpoint_url = "http://localhost:9090/users"
timeout = "3s"
requests_per_second = 2.5

[retry]
base_delay = "250ms"

[database]
path = "/custom/path.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.EndpointURL != "http://localhost:9090/users" {
			t.Errorf("expected custom endpoint, got %s", config.API.EndpointURL)
		}
		if config.API.Timeout.Duration != 3*time.Second {
			t.Errorf("expected timeout 3s, got %v", config.API.Timeout.Duration)
		}
		if config.API.RequestsPerSecond != 2.5 {
			t.Errorf("expected 2.5 rps, got %v", config.API.RequestsPerSecond)
		}
		if config.Retry.BaseDelay.Duration != 250*time.Millisecond {
			t.Errorf("expected base delay 250ms, got %v", config.Retry.BaseDelay.Duration)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Log.File != DefaultEventLogPath {
			t.Errorf("missing keys should keep defaults, got log file %q", config.Log.File)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tc := []struct {
			name    string
			content string
		}{
			{name: "bad duration", content: "[api]\ntimeout = \"soon\"\n"},
			{name: "relative endpoint", content: "[api]\nendpoint_url = \"/create_user\"\n"},
			{name: "zero timeout", content: "[api]\ntimeout = \"0s\"\n"},
			{name: "negative rate", content: "[api]\nrequests_per_second = -1\n"},
			{name: "negative delay", content: "[retry]\nbase_delay = \"-1s\"\n"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}
