package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

// EnvConfig holds the process-wide operational settings from the
// configuration table: per-job limits, worker cadence, and quality-gate
// thresholds that every job shares unless explicitly overridden. Fields are
// bound from environment variables named by their `env` tag; a field whose
// variable is unset or empty keeps its DefaultEnvConfig value.
type EnvConfig struct {
	MaxPagesLimit         int           `env:"MAX_PAGES_LIMIT"`
	DefaultMaxPages       int           `env:"DEFAULT_MAX_PAGES"`
	ConcurrentRequests    int           `env:"CRAWLER_CONCURRENT_REQUESTS"`
	DownloadDelay         time.Duration `env:"CRAWLER_DOWNLOAD_DELAY"`
	DepthLimit            int           `env:"CRAWLER_DEPTH_LIMIT"`
	UserAgent             string        `env:"CRAWLER_USER_AGENT"`
	WorkerPollInterval    time.Duration `env:"WORKER_POLL_INTERVAL_SECONDS"`
	HeartbeatInterval     time.Duration `env:"HEARTBEAT_INTERVAL_SECONDS"`
	OrphanedThreshold     time.Duration `env:"ORPHANED_THRESHOLD_SECONDS"`
	StalledThreshold      time.Duration `env:"STALLED_THRESHOLD_SECONDS"`
	HardStalledThreshold  time.Duration `env:"HARD_STALLED_THRESHOLD_SECONDS"`
	MinTextLengthSuccess  int           `env:"MIN_TEXT_LENGTH_SUCCESS"`
	MinTextLengthMarginal int           `env:"MIN_TEXT_LENGTH_MARGINAL"`
	JobExpiryHours        int           `env:"JOB_EXPIRY_HOURS"`
}

// DefaultEnvConfig returns the configuration table's documented defaults,
// to be overridden by LoadEnvConfig from the process environment.
func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		MaxPagesLimit:         1000,
		DefaultMaxPages:       100,
		ConcurrentRequests:    128,
		DownloadDelay:         20 * time.Millisecond,
		DepthLimit:            20,
		UserAgent:             "SkrappBot/1.0",
		WorkerPollInterval:    1 * time.Second,
		HeartbeatInterval:     15 * time.Second,
		OrphanedThreshold:     120 * time.Second,
		StalledThreshold:      300 * time.Second,
		HardStalledThreshold:  180 * time.Second,
		MinTextLengthSuccess:  200,
		MinTextLengthMarginal: 50,
		JobExpiryHours:        24,
	}
}

// LoadEnvConfig starts from DefaultEnvConfig and overrides any field whose
// `env` tag names a variable present in the process environment. Every
// time.Duration field is read as a (possibly fractional) number of seconds.
func LoadEnvConfig() (EnvConfig, error) {
	cfg := DefaultEnvConfig()

	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}

		fv := v.Field(i)
		if err := setFromEnv(fv, key, raw); err != nil {
			return EnvConfig{}, err
		}
	}

	return cfg, nil
}

func setFromEnv(fv reflect.Value, key, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			seconds, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("env %s: invalid duration seconds %q: %w", key, raw, err)
			}
			fv.SetInt(int64(time.Duration(seconds * float64(time.Second))))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("env %s: invalid integer %q: %w", key, raw, err)
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("env %s: invalid float %q: %w", key, raw, err)
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("env %s: invalid bool %q: %w", key, raw, err)
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("env %s: unsupported field kind %s", key, fv.Kind())
	}
	return nil
}
