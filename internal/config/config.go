// Package config handles service configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/errors"
	"github.com/snapsift/snapsift/internal/session"
	"github.com/snapsift/snapsift/internal/similarity"
)

type Config struct {
	HTTPAddr      string
	OutputDir     string
	Duration      int     // seconds
	Interval      int     // seconds
	Threshold     float64 // percent
	Region        string  // "x,y,width,height", empty for full screen
	Policy        string  // "any" or "all"
	MaxRecords    int     // 0 = unbounded
	HashPrefilter bool
}

func Load() *Config {
	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8000"),
		OutputDir:     getEnv("OUTPUT_DIR", "./screenshots"),
		Duration:      getEnvInt("SESSION_DURATION", 300),
		Interval:      getEnvInt("CAPTURE_INTERVAL", 5),
		Threshold:     getEnvFloat("SIMILARITY_THRESHOLD", 95),
		Region:        getEnv("CAPTURE_REGION", ""),
		Policy:        getEnv("DEDUP_POLICY", "any"),
		MaxRecords:    getEnvInt("MAX_RECORDS", 0),
		HashPrefilter: getEnvBool("HASH_PREFILTER", true),
	}
}

// Session turns the loaded defaults into a validated session config.
func (c *Config) Session() (session.Config, error) {
	region, err := ParseRegion(c.Region)
	if err != nil {
		return session.Config{}, err
	}

	cfg := session.Config{
		OutputDir:     c.OutputDir,
		Region:        region,
		Duration:      time.Duration(c.Duration) * time.Second,
		Interval:      time.Duration(c.Interval) * time.Second,
		Threshold:     c.Threshold,
		Policy:        similarity.ParsePolicy(c.Policy),
		MaxRecords:    c.MaxRecords,
		HashPrefilter: c.HashPrefilter,
	}
	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}

// ParseRegion parses "x,y,width,height". Empty means full screen.
func ParseRegion(s string) (capture.Region, error) {
	if strings.TrimSpace(s) == "" {
		return capture.Region{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return capture.Region{}, errors.Newf(errors.CodeConfigInvalid,
			"region %q must be x,y,width,height", s)
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return capture.Region{}, errors.Wrapf(err, errors.CodeConfigInvalid,
				"region component %q", p)
		}
		vals[i] = v
	}
	return capture.Region{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
