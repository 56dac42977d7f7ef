package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.MaxConnections != 5000 {
		t.Errorf("MaxConnections = %d, want 5000", cfg.MaxConnections)
	}
	if cfg.RateLimitPerSecond != 100 {
		t.Errorf("RateLimitPerSecond = %d, want 100", cfg.RateLimitPerSecond)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.IdleTimeout)
	}
	if cfg.OfflineQueueCap != 100 {
		t.Errorf("OfflineQueueCap = %d, want 100", cfg.OfflineQueueCap)
	}
	if cfg.HistoryCap != 1000 {
		t.Errorf("HistoryCap = %d, want 1000", cfg.HistoryCap)
	}
	if cfg.ChatRetention != 30*24*time.Hour {
		t.Errorf("ChatRetention = %v, want 720h", cfg.ChatRetention)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("STREAMGATE_TEST_INT", "42")
	if got := GetEnvInt("STREAMGATE_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	if got := GetEnvInt("STREAMGATE_TEST_INT_MISSING", 7); got != 7 {
		t.Errorf("GetEnvInt missing = %d, want default 7", got)
	}

	t.Setenv("STREAMGATE_TEST_INT_BAD", "not-a-number")
	if got := GetEnvInt("STREAMGATE_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("GetEnvInt unparseable = %d, want default 7", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("STREAMGATE_TEST_DUR", "90s")
	if got := GetEnvDuration("STREAMGATE_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("GetEnvDuration = %v, want 90s", got)
	}

	t.Setenv("STREAMGATE_TEST_DUR_BAD", "soon")
	if got := GetEnvDuration("STREAMGATE_TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("GetEnvDuration unparseable = %v, want default 1m", got)
	}
}
