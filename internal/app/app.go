package app

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"slunch/internal/access"
	"slunch/internal/dispatch"
	"slunch/internal/notice"
	"slunch/internal/precache"
	"slunch/internal/resolver"
	"slunch/internal/retention"
	"slunch/internal/subscription"
	"slunch/pkg/api/auth"
	"slunch/pkg/config"
	"slunch/pkg/push"
	"slunch/pkg/schedule"
	"slunch/pkg/state"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/telemetry"
	"slunch/pkg/timeutil"
	"slunch/pkg/upstream"
	"slunch/pkg/upstream/comcigan"
	"slunch/pkg/upstream/neis"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	store    *store.Store
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	journal  *state.FailedOpWriter

	resolver  *resolver.Resolver
	timetable upstream.TimetableSource
	access    *access.Tracker
	subs      *subscription.Store
	notices   *notice.Board
	precache  *precache.Scheduler
	dispatch  *dispatch.Dispatcher
	retention *retention.Runner

	jobs       *schedule.Scheduler
	jobsCancel context.CancelFunc
	gateway    *auth.Gateway
	srvFast    *fasthttp.Server
	state      string
}

// New opens the store and builds every component. It does not start the
// jobs or the http server; Run does. state.Init must have run before.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	c := eff.Config
	if c == nil {
		return nil, fmt.Errorf("effective config is nil")
	}
	if state.PathsVar.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	if err := timeutil.LoadLocation(c.Server.Timezone); err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	s, err := store.Open(state.PathsVar.Store, store.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate, store: s, state: "starting"}
	if err := a.build(); err != nil {
		a.tracer.Close()
		_ = s.Close()
		return nil, err
	}
	a.logSummary()
	return a, nil
}

func (a *App) build() error {
	c := a.eff.Config

	a.registry = prometheus.NewRegistry()
	a.metrics = telemetry.New(a.registry)
	telemetry.RegisterRuntime(a.registry)
	telemetry.RegisterStore(a.registry, a.store)

	if tc := c.Telemetry; tc.Enabled {
		tr, err := telemetry.NewTracer(state.PathsVar.Tel, int(tc.BufferSize), tc.QueueCapacity, tc.FlushInterval.Duration(), tc.FileMaxSize.Int64())
		if err != nil {
			return fmt.Errorf("start tracer: %w", err)
		}
		a.tracer = tr
	}

	nc := neis.New(neis.Config{
		BaseURL:  c.Upstream.NEIS.BaseURL,
		APIKey:   c.Upstream.NEIS.APIKey,
		Timeout:  c.Upstream.NEIS.Timeout.Duration(),
		PageSize: c.Upstream.NEIS.PageSize,
	})
	nc.CallHook = a.metrics.UpstreamHook("neis")

	if tt := c.Upstream.Timetable; tt.BaseURL != "" {
		cc := comcigan.New(comcigan.Config{BaseURL: tt.BaseURL, Timeout: tt.Timeout.Duration()})
		cc.CallHook = a.metrics.UpstreamHook("comcigan")
		a.timetable = cc
	}

	var sender push.Sender = push.LogSender{}
	if p := c.Push; p.Enabled {
		fcm, err := push.NewFCM(context.Background(), push.FCMConfig{
			CredentialsFile: p.CredentialsFile,
			ProjectID:       p.ProjectID,
			Endpoint:        p.Endpoint,
			Timeout:         p.Timeout.Duration(),
		})
		if err != nil {
			return fmt.Errorf("init fcm sender: %w", err)
		}
		sender = fcm
	}

	cc := c.Cache
	a.access = access.New(a.store, access.Options{
		MinCount: cc.AccessMinCount,
		Window:   cc.AccessWindow.Duration(),
		Horizon:  cc.AccessHorizon.Duration(),
	})

	qp := resolver.QueryPolicy(cc.QueryTimeout.Duration())
	qp.FallbackDays = cc.FallbackDays
	wp := resolver.WarmPolicy(cc.WarmTimeout.Duration())
	wp.MaxAttempts = cc.WarmAttempts
	wp.Backoff = cc.WarmBackoff.Duration()
	a.resolver = resolver.New(resolver.Deps{
		Store:       a.store,
		Meals:       nc,
		Schedules:   nc,
		Schools:     nc,
		Tracker:     a.access,
		Metrics:     a.metrics,
		QueryPolicy: qp,
		WarmPolicy:  wp,
	})

	a.subs = subscription.New(a.store)
	a.notices = notice.New(a.store)

	a.journal = state.NewFailedOpWriter(state.PathsVar.Crash)
	pc := c.Precache
	a.precache = precache.New(precache.Deps{
		Warmer:  a.resolver,
		Ranker:  a.access,
		Subs:    a.subs,
		Journal: a.journal,
		Metrics: a.metrics,
	}, precache.Options{
		RankLimit:         pc.RankLimit,
		SubscriptionLimit: pc.SubscriptionLimit,
		Days:              pc.Days,
		Delay:             pc.Delay.Duration(),
	})

	a.dispatch = dispatch.New(dispatch.Deps{
		Subs:      a.subs,
		Meals:     a.resolver,
		Timetable: a.timetable,
		Sender:    sender,
		Metrics:   a.metrics,
	})

	rc := c.Retention
	a.retention = retention.New(a.store, a.access, state.PathsVar.State, retention.Options{
		MealMaxAge: rc.MealMaxAge.Duration(),
		LockTTL:    rc.LockTTL.Duration(),
		DryRun:     rc.DryRun,
	})

	a.jobs = schedule.New(a.metrics)
	if err := a.registerJobs(); err != nil {
		return err
	}

	a.gateway = auth.NewGateway(auth.Config{
		PerMinute:  c.Server.RateLimit.PerMinute,
		Burst:      c.Server.RateLimit.Burst,
		TrustProxy: c.Server.TrustProxy,
		AdminKey:   c.Admin.Key,
	}, a.metrics)
	return nil
}

func (a *App) logSummary() {
	c := a.eff.Config
	rl := c.Server.RateLimit
	items := []string{
		fmt.Sprintf("timezone: %s", timeutil.Location()),
		fmt.Sprintf("rate_limit: %s/min burst %s", humanize.Comma(int64(rl.PerMinute)), humanize.Comma(int64(rl.Burst))),
		fmt.Sprintf("max_body: %s", humanize.IBytes(uint64(c.Server.MaxBodySize))),
		fmt.Sprintf("fallback_days: %d", c.Cache.FallbackDays),
		fmt.Sprintf("precache: %d ranked + %d subscribed x %d days", c.Precache.RankLimit, c.Precache.SubscriptionLimit, c.Precache.Days),
		fmt.Sprintf("timetable: %t", a.timetable != nil),
		fmt.Sprintf("push: %t", c.Push.Enabled),
		fmt.Sprintf("telemetry: %t", a.tracer != nil),
	}
	logger.Info("config_summary", "items", items)
}

// Run starts the jobs and the http server and blocks until ctx is done or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	a.jobsCancel = a.jobs.Start(ctx)
	errCh := a.startHTTP()
	a.state = "running"
	logger.Info("server_started", "addr", a.eff.Addr, "jobs", len(a.jobs.Status()))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
