package config

import (
	"os"
	"testing"
	"time"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/errors"
)

var envVars = []string{
	"HTTP_ADDR", "OUTPUT_DIR", "SESSION_DURATION", "CAPTURE_INTERVAL",
	"SIMILARITY_THRESHOLD", "CAPTURE_REGION", "DEDUP_POLICY",
	"MAX_RECORDS", "HASH_PREFILTER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.OutputDir != "./screenshots" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "./screenshots")
	}
	if cfg.Duration != 300 {
		t.Errorf("Duration = %d, want 300", cfg.Duration)
	}
	if cfg.Interval != 5 {
		t.Errorf("Interval = %d, want 5", cfg.Interval)
	}
	if cfg.Threshold != 95 {
		t.Errorf("Threshold = %f, want 95", cfg.Threshold)
	}
	if cfg.Region != "" {
		t.Errorf("Region = %q, want empty (full screen)", cfg.Region)
	}
	if cfg.Policy != "any" {
		t.Errorf("Policy = %q, want %q", cfg.Policy, "any")
	}
	if !cfg.HashPrefilter {
		t.Error("HashPrefilter should default to true")
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_DURATION", "60")
	t.Setenv("CAPTURE_INTERVAL", "2")
	t.Setenv("SIMILARITY_THRESHOLD", "80.5")
	t.Setenv("CAPTURE_REGION", "10,20,640,480")
	t.Setenv("DEDUP_POLICY", "all")
	t.Setenv("HASH_PREFILTER", "false")

	cfg := Load()
	if cfg.Duration != 60 || cfg.Interval != 2 {
		t.Errorf("duration/interval = %d/%d, want 60/2", cfg.Duration, cfg.Interval)
	}
	if cfg.Threshold != 80.5 {
		t.Errorf("Threshold = %f, want 80.5", cfg.Threshold)
	}
	if cfg.HashPrefilter {
		t.Error("HashPrefilter should be false")
	}

	sess, err := cfg.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Duration != 60*time.Second {
		t.Errorf("session duration = %s, want 60s", sess.Duration)
	}
	if sess.Region != (capture.Region{X: 10, Y: 20, Width: 640, Height: 480}) {
		t.Errorf("session region = %+v", sess.Region)
	}
}

func TestSessionRejectsInvalidDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_DURATION", "0")

	if _, err := Load().Session(); !errors.IsCode(err, errors.CodeConfigInvalid) {
		t.Errorf("error = %v, want CodeConfigInvalid", err)
	}
}

func TestParseRegion(t *testing.T) {
	cases := []struct {
		in      string
		want    capture.Region
		wantErr bool
	}{
		{"", capture.Region{}, false},
		{"  ", capture.Region{}, false},
		{"0,0,800,600", capture.Region{Width: 800, Height: 600}, false},
		{" 10, 20, 30, 40 ", capture.Region{X: 10, Y: 20, Width: 30, Height: 40}, false},
		{"10,20,30", capture.Region{}, true},
		{"a,b,c,d", capture.Region{}, true},
	}

	for _, c := range cases {
		got, err := ParseRegion(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseRegion(%q) succeeded, want error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRegion(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseRegion(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}
