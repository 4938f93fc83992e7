package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Admin     AdminConfig     `yaml:"admin"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Push      PushConfig      `yaml:"push"`
	Cache     CacheConfig     `yaml:"cache"`
	Precache  PrecacheConfig  `yaml:"precache"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Retention RetentionConfig `yaml:"retention"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds http listener settings.
type ServerConfig struct {
	Address      string    `yaml:"address"`
	Port         int       `yaml:"port"`
	DBPath       string    `yaml:"db_path"`
	Timezone     string    `yaml:"timezone"`
	ReadTimeout  Duration  `yaml:"read_timeout"`
	WriteTimeout Duration  `yaml:"write_timeout"`
	MaxBodySize  SizeBytes `yaml:"max_body_size"`
	RateLimit    struct {
		PerMinute int `yaml:"per_minute"`
		Burst     int `yaml:"burst"`
	} `yaml:"rate_limit"`
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AdminConfig holds the shared secret expected in the Token header.
type AdminConfig struct {
	Key string `yaml:"key"`
}

type UpstreamConfig struct {
	NEIS      NEISConfig      `yaml:"neis"`
	Timetable TimetableConfig `yaml:"timetable"`
}

type NEISConfig struct {
	BaseURL  string   `yaml:"base_url"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
	PageSize int      `yaml:"page_size"`
}

// TimetableConfig points at the timetable gateway. An empty base URL
// disables the timetable endpoints and the timetable notification pass.
type TimetableConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// PushConfig configures FCM delivery. With Enabled false notifications are
// only logged.
type PushConfig struct {
	Enabled         bool     `yaml:"enabled"`
	CredentialsFile string   `yaml:"credentials_file"`
	ProjectID       string   `yaml:"project_id"`
	Endpoint        string   `yaml:"endpoint"`
	Timeout         Duration `yaml:"timeout"`
}

// CacheConfig tunes the resolver and the access ranking.
type CacheConfig struct {
	QueryTimeout   Duration `yaml:"query_timeout"`
	FallbackDays   int      `yaml:"fallback_days"`
	WarmTimeout    Duration `yaml:"warm_timeout"`
	WarmAttempts   int      `yaml:"warm_attempts"`
	WarmBackoff    Duration `yaml:"warm_backoff"`
	AccessMinCount int      `yaml:"access_min_count"`
	AccessWindow   Duration `yaml:"access_window"`
	AccessHorizon  Duration `yaml:"access_horizon"`
}

type PrecacheConfig struct {
	Enabled           *bool    `yaml:"enabled"`
	Cron              string   `yaml:"cron"`
	RankLimit         int      `yaml:"rank_limit"`
	SubscriptionLimit int      `yaml:"subscription_limit"`
	Days              int      `yaml:"days"`
	Delay             Duration `yaml:"delay"`
}

type DispatchConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// RetentionConfig holds configuration for the weekly cleanup runs.
type RetentionConfig struct {
	Enabled         *bool    `yaml:"enabled"`
	Cron            string   `yaml:"cron"`
	SchoolCacheCron string   `yaml:"school_cache_cron"`
	MealMaxAge      Duration `yaml:"meal_max_age"`
	DryRun          bool     `yaml:"dry_run"`
	// LockTTL is the lease TTL a run holds while it works. If zero, a
	// default is applied.
	LockTTL Duration `yaml:"lock_ttl"`
}

// TelemetryConfig controls the request trace files written under the state
// directory.
type TelemetryConfig struct {
	Enabled       bool      `yaml:"enabled"`
	BufferSize    SizeBytes `yaml:"buffer_size"`
	FileMaxSize   SizeBytes `yaml:"file_max_size"`
	FlushInterval Duration  `yaml:"flush_interval"`
	QueueCapacity int       `yaml:"queue_capacity"`
}

// On reports whether a job toggle is set; jobs run unless disabled.
func On(b *bool) bool { return b == nil || *b }

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from
// strings like "100ms", day counts like "30d" or plain numbers (seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	if strings.HasSuffix(raw, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(raw, "d")); err == nil {
			return Duration(time.Duration(n) * 24 * time.Hour), nil
		}
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
