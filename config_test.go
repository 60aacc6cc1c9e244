package fxclient

import (
	"testing"
	"time"
)

func TestValidateRequiresBaseURL(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty BaseURL accepted")
	}

	cfg.BaseURL = "   "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("blank BaseURL accepted")
	}
}

func TestValidateRejectsRelativeBaseURL(t *testing.T) {
	cfg := defaultConfig()
	for _, bad := range []string{"/api/v1", "localhost:5000", "not a url"} {
		cfg.BaseURL = bad
		if err := cfg.Validate(); err == nil {
			t.Fatalf("BaseURL %q accepted", bad)
		}
	}

	cfg.BaseURL = "https://api.example.com/api/v1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid BaseURL rejected: %v", err)
	}
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://api.example.com"

	cfg.Timeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative timeout accepted")
	}
	cfg.Timeout = 0

	cfg.Notify.BufferSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative buffer size accepted")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if !cfg.Notify.ShowSuccess || !cfg.Notify.ShowErrors {
		t.Fatalf("notifications disabled by default: %+v", cfg.Notify)
	}
	if !cfg.Notify.DropIfFull {
		t.Fatalf("default must not block producers on a full buffer")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FXCLIENT_API_URL", "https://api.example.com/api/v1")
	t.Setenv("FXCLIENT_TIMEOUT", "10s")
	t.Setenv("FXCLIENT_RECORD_KEY", "session")
	t.Setenv("FXCLIENT_STORAGE_PATH", "/tmp/fx-session.json")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.BaseURL != "https://api.example.com/api/v1" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Storage.RecordKey != "session" || cfg.Storage.FilePath != "/tmp/fx-session.json" {
		t.Fatalf("storage config = %+v", cfg.Storage)
	}
}

func TestConfigFromEnvRequiresAPIURL(t *testing.T) {
	t.Setenv("FXCLIENT_API_URL", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("missing FXCLIENT_API_URL accepted")
	}
}
