package app

import (
	"os"
	"time"

	"github.com/valyala/fasthttp"

	"slunch/pkg/api"
	"slunch/pkg/api/router"
	"slunch/pkg/config/banner"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(os.Stdout, a.eff, verStr)
}

// readyzHandlerFast reports whether the store is open.
func (a *App) readyzHandlerFast(ctx *fasthttp.RequestCtx) {
	if !a.store.Ready() {
		router.WriteJSONStatus(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	router.WriteJSON(ctx, map[string]string{"status": "ok", "version": ver})
}

func (a *App) healthzHandlerFast(ctx *fasthttp.RequestCtx) {
	router.WriteJSON(ctx, map[string]string{"status": "ok"})
}

// handler builds the routed API behind the gateway, with the health endpoints.
func (a *App) handler() fasthttp.RequestHandler {
	h := api.New(api.Deps{
		Store:     a.store,
		Resolver:  a.resolver,
		Timetable: a.timetable,
		Subs:      a.subs,
		Notices:   a.notices,
		Access:    a.access,
		Precache:  a.precache,
		Jobs:      a.jobs,
		Gateway:   a.gateway,
		Gatherer:  a.registry,
	})
	return h.Handler(func(r *router.Router) {
		r.GET("/healthz", a.healthzHandlerFast)
		r.GET("/readyz", a.readyzHandlerFast)
	})
}

// startHTTP builds and starts the fasthttp server, returning a channel that delivers errors.
func (a *App) startHTTP() <-chan error {
	sc := a.eff.Config.Server

	const (
		readBufferSize       = 16 * 1024
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Handler:              a.handler(),
		Name:                 "slunch",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(sc.MaxBodySize.Int64()),
		ReadTimeout:          sc.ReadTimeout.Duration(),
		WriteTimeout:         sc.WriteTimeout.Duration(),
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
		ReduceMemoryUsage:    true,
	}

	errCh := make(chan error, 1)
	go func() {
		// TLS is terminated by the proxy in front
		errCh <- a.srvFast.ListenAndServe(a.eff.Addr)
	}()
	return errCh
}
