package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

func setDuration(d *Duration, def time.Duration) {
	if d.Duration() <= 0 {
		*d = Duration(def)
	}
}

func setInt(n *int, def int) {
	if *n <= 0 {
		*n = def
	}
}

// ValidateConfig fills defaults and fails fast on values the service cannot
// run with.
func ValidateConfig(eff EffectiveConfigResult) error {
	c := eff.Config
	if c == nil {
		return fmt.Errorf("effective config is nil")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, SLUNCH_DB_PATH env, or server.db_path in config")
	}

	if c.Server.Timezone == "" {
		c.Server.Timezone = defaultTimezone
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid server.timezone %q: %w", c.Server.Timezone, err)
	}
	setInt(&c.Server.RateLimit.PerMinute, defaultRatePerMin)
	setInt(&c.Server.RateLimit.Burst, c.Server.RateLimit.PerMinute)
	if c.Server.MaxBodySize <= 0 {
		c.Server.MaxBodySize = SizeBytes(defaultMaxBodySize)
	}
	setDuration(&c.Server.ReadTimeout, defaultReadTimeout*time.Second)
	setDuration(&c.Server.WriteTimeout, defaultWriteTimeout*time.Second)

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}

	n := &c.Upstream.NEIS
	if n.BaseURL == "" {
		n.BaseURL = defaultNEISBaseURL
	}
	setDuration(&n.Timeout, defaultNEISTimeout*time.Second)
	setInt(&n.PageSize, defaultNEISPageSize)
	setDuration(&c.Upstream.Timetable.Timeout, defaultTTTimeout*time.Second)

	p := &c.Push
	if p.Endpoint == "" {
		p.Endpoint = defaultFCMEndpoint
	}
	setDuration(&p.Timeout, defaultFCMTimeout*time.Second)
	if p.Enabled {
		if p.CredentialsFile == "" {
			return fmt.Errorf("push enabled but push.credentials_file is empty")
		}
		if _, err := os.Stat(p.CredentialsFile); err != nil {
			return fmt.Errorf("push credentials file not accessible: %w", err)
		}
	}

	cc := &c.Cache
	setDuration(&cc.QueryTimeout, n.Timeout.Duration())
	setInt(&cc.FallbackDays, defaultFallbackDays)
	setDuration(&cc.WarmTimeout, n.Timeout.Duration())
	setInt(&cc.WarmAttempts, defaultWarmAttempts)
	setDuration(&cc.WarmBackoff, defaultWarmBackoff*time.Second)
	setInt(&cc.AccessMinCount, defaultAccessMinCount)
	setDuration(&cc.AccessWindow, defaultAccessWindow*24*time.Hour)
	setDuration(&cc.AccessHorizon, defaultAccessHorizon*24*time.Hour)
	if cc.AccessHorizon < cc.AccessWindow {
		return fmt.Errorf("cache.access_horizon (%s) must not be shorter than cache.access_window (%s)", cc.AccessHorizon.Duration(), cc.AccessWindow.Duration())
	}

	pc := &c.Precache
	if pc.Cron == "" {
		pc.Cron = defaultPrecacheCron
	}
	setInt(&pc.RankLimit, defaultPrecacheRank)
	setInt(&pc.SubscriptionLimit, defaultPrecacheSubs)
	setInt(&pc.Days, defaultPrecacheDays)
	setDuration(&pc.Delay, defaultPrecacheDelayMs*time.Millisecond)

	if c.Dispatch.Cron == "" {
		c.Dispatch.Cron = defaultDispatchCron
	}

	rc := &c.Retention
	if rc.Cron == "" {
		rc.Cron = defaultRetentionCron
	}
	if rc.SchoolCacheCron == "" {
		rc.SchoolCacheCron = defaultSchoolCacheCron
	}
	setDuration(&rc.LockTTL, defaultRetentionLockTTL*time.Second)

	tc := &c.Telemetry
	if tc.BufferSize <= 0 {
		tc.BufferSize = SizeBytes(defaultTelemetryBufferSize)
	}
	if tc.FileMaxSize <= 0 {
		tc.FileMaxSize = SizeBytes(defaultTelemetryFileMaxSize)
	}
	setDuration(&tc.FlushInterval, defaultTelemetryFlushMs*time.Millisecond)
	setInt(&tc.QueueCapacity, defaultTelemetryQueueCapacity)

	for name, expr := range map[string]string{
		"precache.cron":               pc.Cron,
		"dispatch.cron":               c.Dispatch.Cron,
		"retention.cron":              rc.Cron,
		"retention.school_cache_cron": rc.SchoolCacheCron,
	} {
		if !gronx.IsValid(expr) {
			return fmt.Errorf("invalid %s: %q is not a valid cron expression", name, expr)
		}
	}
	return nil
}
