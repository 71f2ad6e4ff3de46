package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.Workers != 4 {
		t.Errorf("Workers default = %d, want 4", c.Workers)
	}
	if c.RetryWait != 500*time.Millisecond {
		t.Errorf("RetryWait default = %v", c.RetryWait)
	}
	if c.RateLimit != 0 {
		t.Errorf("RateLimit default = %v, want 0 (unlimited)", c.RateLimit)
	}
	if c.MetricsAddr != "" {
		t.Errorf("MetricsAddr default = %q, want empty", c.MetricsAddr)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("HLSFETCH_WORKERS", "8")
	os.Setenv("HLSFETCH_RETRY_WAIT", "1s")
	os.Setenv("HLSFETCH_RATE_LIMIT", "2.5")
	os.Setenv("HLSFETCH_METRICS_ADDR", ":9090")
	os.Setenv("HLSFETCH_STATE_DB", "/tmp/state.db")
	os.Setenv("HLSFETCH_POLL_INTERVAL", "30s")

	c := Load()
	if c.Workers != 8 {
		t.Errorf("Workers = %d", c.Workers)
	}
	if c.RetryWait != time.Second {
		t.Errorf("RetryWait = %v", c.RetryWait)
	}
	if c.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v", c.RateLimit)
	}
	if c.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q", c.MetricsAddr)
	}
	if c.StateDBPath != "/tmp/state.db" {
		t.Errorf("StateDBPath = %q", c.StateDBPath)
	}
	if c.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v", c.PollInterval)
	}
}
