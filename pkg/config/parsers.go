package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses the three command-line flags.
func ParseConfigFlags() Flags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers and parses the flags on fs.
func ParseFlagSet(fs *flag.FlagSet, args []string) Flags {
	addrPtr := fs.String("addr", ":8080", "HTTP listen address")
	dbPtr := fs.String("db", "./.database", "Pebble DB path")
	cfgPtr := fs.String("config", "./config.yaml", "Path to config file")
	_ = fs.Parse(args)

	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

var envNames = []string{
	"SERVER_ADDR", "SERVER_ADDRESS", "SERVER_PORT", "DB_PATH", "TIMEZONE",
	"MAX_BODY_SIZE", "RATE_PER_MINUTE", "RATE_BURST", "TRUST_PROXY",
	"LOG_LEVEL", "ADMIN_KEY",
	"NEIS_BASE_URL", "NEIS_API_KEY", "NEIS_TIMEOUT",
	"TIMETABLE_BASE_URL", "TIMETABLE_TIMEOUT",
	"PUSH_ENABLED", "FCM_CREDENTIALS_FILE", "FCM_PROJECT_ID", "FCM_ENDPOINT",
	"CACHE_QUERY_TIMEOUT", "CACHE_FALLBACK_DAYS", "ACCESS_MIN_COUNT",
	"PRECACHE_ENABLED", "PRECACHE_CRON", "PRECACHE_RANK_LIMIT", "PRECACHE_DELAY",
	"DISPATCH_ENABLED", "DISPATCH_CRON",
	"RETENTION_ENABLED", "RETENTION_CRON", "RETENTION_SCHOOL_CACHE_CRON",
	"RETENTION_MEAL_MAX_AGE", "RETENTION_DRY_RUN", "RETENTION_LOCK_TTL",
	"TELEMETRY_ENABLED",
}

// readEnv collects the SLUNCH_* variables keyed without the prefix.
func readEnv(lookup func(string) string) map[string]string {
	envs := make(map[string]string, len(envNames))
	for _, n := range envNames {
		if v := strings.TrimSpace(lookup("SLUNCH_" + n)); v != "" {
			envs[n] = v
		}
	}
	// the names the service has always read
	if _, ok := envs["NEIS_API_KEY"]; !ok {
		if v := strings.TrimSpace(lookup("NEIS_API_KEY")); v != "" {
			envs["NEIS_API_KEY"] = v
		}
	}
	if _, ok := envs["ADMIN_KEY"]; !ok {
		if v := strings.TrimSpace(lookup("ADMIN_KEY")); v != "" {
			envs["ADMIN_KEY"] = v
		}
	}
	return envs
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ParseConfigEnvs loads environment variables into a new Config. The bool
// reports whether any variable was set.
func ParseConfigEnvs() (*Config, bool) {
	return parseEnvs(os.Getenv)
}

func parseEnvs(lookup func(string) string) (*Config, bool) {
	envs := readEnv(lookup)
	c := &Config{}

	atoi := func(k string, dst *int) {
		if v, ok := envs[k]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(k string, dst *Duration) {
		if v, ok := envs[k]; ok {
			if d, err := parseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	str := func(k string, dst *string) {
		if v, ok := envs[k]; ok {
			*dst = v
		}
	}
	boolean := func(k string, dst *bool) {
		if v, ok := envs[k]; ok {
			*dst = parseBool(v)
		}
	}
	toggle := func(k string, dst **bool) {
		if v, ok := envs[k]; ok {
			b := parseBool(v)
			*dst = &b
		}
	}

	if v, ok := envs["SERVER_ADDR"]; ok {
		if h, p, err := net.SplitHostPort(v); err == nil {
			c.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				c.Server.Port = pi
			}
		} else {
			c.Server.Address = v
		}
	} else {
		str("SERVER_ADDRESS", &c.Server.Address)
		atoi("SERVER_PORT", &c.Server.Port)
	}
	str("DB_PATH", &c.Server.DBPath)
	str("TIMEZONE", &c.Server.Timezone)
	if v, ok := envs["MAX_BODY_SIZE"]; ok {
		if s, err := parseSize(v); err == nil {
			c.Server.MaxBodySize = s
		}
	}
	atoi("RATE_PER_MINUTE", &c.Server.RateLimit.PerMinute)
	atoi("RATE_BURST", &c.Server.RateLimit.Burst)
	boolean("TRUST_PROXY", &c.Server.TrustProxy)

	str("LOG_LEVEL", &c.Logging.Level)
	str("ADMIN_KEY", &c.Admin.Key)

	str("NEIS_BASE_URL", &c.Upstream.NEIS.BaseURL)
	str("NEIS_API_KEY", &c.Upstream.NEIS.APIKey)
	dur("NEIS_TIMEOUT", &c.Upstream.NEIS.Timeout)
	str("TIMETABLE_BASE_URL", &c.Upstream.Timetable.BaseURL)
	dur("TIMETABLE_TIMEOUT", &c.Upstream.Timetable.Timeout)

	boolean("PUSH_ENABLED", &c.Push.Enabled)
	str("FCM_CREDENTIALS_FILE", &c.Push.CredentialsFile)
	str("FCM_PROJECT_ID", &c.Push.ProjectID)
	str("FCM_ENDPOINT", &c.Push.Endpoint)

	dur("CACHE_QUERY_TIMEOUT", &c.Cache.QueryTimeout)
	atoi("CACHE_FALLBACK_DAYS", &c.Cache.FallbackDays)
	atoi("ACCESS_MIN_COUNT", &c.Cache.AccessMinCount)

	toggle("PRECACHE_ENABLED", &c.Precache.Enabled)
	str("PRECACHE_CRON", &c.Precache.Cron)
	atoi("PRECACHE_RANK_LIMIT", &c.Precache.RankLimit)
	dur("PRECACHE_DELAY", &c.Precache.Delay)

	toggle("DISPATCH_ENABLED", &c.Dispatch.Enabled)
	str("DISPATCH_CRON", &c.Dispatch.Cron)

	toggle("RETENTION_ENABLED", &c.Retention.Enabled)
	str("RETENTION_CRON", &c.Retention.Cron)
	str("RETENTION_SCHOOL_CACHE_CRON", &c.Retention.SchoolCacheCron)
	dur("RETENTION_MEAL_MAX_AGE", &c.Retention.MealMaxAge)
	boolean("RETENTION_DRY_RUN", &c.Retention.DryRun)
	dur("RETENTION_LOCK_TTL", &c.Retention.LockTTL)

	boolean("TELEMETRY_ENABLED", &c.Telemetry.Enabled)

	return c, len(envs) > 0
}

// LoadEffectiveConfig decides which source the config comes from. With
// --config only the file is used. Otherwise the file is used when present
// and the environment when not; --addr and --db override the chosen source.
// Secrets missing from the chosen source are taken from the environment so
// they never have to live in the file.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult
	if envCfg == nil {
		envCfg = &Config{}
	}

	switch {
	case flags.Set["config"]:
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Source = "config"
	case fileExists:
		res.Config = fileCfg
		res.Source = "config"
	default:
		res.Config = envCfg
		res.Source = "env"
	}
	fillSecrets(res.Config, envCfg)

	res.Addr = res.Config.Addr()
	res.DBPath = res.Config.Server.DBPath
	if !flags.Set["config"] {
		if flags.Set["addr"] {
			res.Addr = flags.Addr
			res.Config.Server.Address, res.Config.Server.Port = splitAddr(flags.Addr)
			res.Source = "flags"
		}
		if flags.Set["db"] {
			res.DBPath = flags.DB
			res.Source = "flags"
		}
	}
	if res.DBPath == "" {
		res.DBPath = flags.DB
	}
	res.Config.Server.DBPath = res.DBPath
	return res, nil
}

func fillSecrets(dst, env *Config) {
	if dst == env {
		return
	}
	if dst.Admin.Key == "" {
		dst.Admin.Key = env.Admin.Key
	}
	if dst.Upstream.NEIS.APIKey == "" {
		dst.Upstream.NEIS.APIKey = env.Upstream.NEIS.APIKey
	}
	if dst.Push.CredentialsFile == "" {
		dst.Push.CredentialsFile = env.Push.CredentialsFile
	}
}

// splitAddr extracts host and port from host:port; a bare ":8080" yields an
// empty host.
func splitAddr(a string) (string, int) {
	h, p, err := net.SplitHostPort(a)
	if err != nil {
		return a, 0
	}
	pi, _ := strconv.Atoi(p)
	return h, pi
}
