package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ValidateConfig.
const (
	defaultTimezone     = "Asia/Seoul"
	defaultRatePerMin   = 100
	defaultMaxBodySize  = 1 << 20
	defaultReadTimeout  = 10
	defaultWriteTimeout = 30

	defaultNEISBaseURL  = "https://open.neis.go.kr/hub"
	defaultNEISTimeout  = 5
	defaultNEISPageSize = 100
	defaultTTTimeout    = 5

	defaultFCMEndpoint = "https://fcm.googleapis.com"
	defaultFCMTimeout  = 10

	defaultFallbackDays   = 7
	defaultWarmAttempts   = 3
	defaultWarmBackoff    = 2
	defaultAccessMinCount = 5
	defaultAccessWindow   = 30
	defaultAccessHorizon  = 90

	defaultPrecacheCron     = "30 5 * * *"
	defaultPrecacheRank     = 50
	defaultPrecacheSubs     = 100
	defaultPrecacheDays     = 2
	defaultPrecacheDelayMs  = 100
	defaultDispatchCron     = "* * * * *"
	defaultRetentionCron    = "0 3 * * 0"
	defaultSchoolCacheCron  = "0 4 * * 6"
	defaultRetentionLockTTL = 300

	defaultTelemetryBufferSize    = 4 * 1024 * 1024
	defaultTelemetryFileMaxSize   = 40 * 1024 * 1024
	defaultTelemetryFlushMs       = 2000
	defaultTelemetryQueueCapacity = 2048
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("SLUNCH_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
