// Package auth is the request gate in front of the router: request logging,
// per-client rate limiting and the admin key check.
package auth

import (
	"crypto/subtle"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"slunch/pkg/api/router"
	"slunch/pkg/apperr"
	"slunch/pkg/state/logger"
	"slunch/pkg/telemetry"
)

// AdminHeader carries the admin key.
const AdminHeader = "Token"

type Config struct {
	PerMinute int
	Burst     int
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	AdminKey   string
}

type Gateway struct {
	cfg      Config
	limiters *limiterPool
	metrics  *telemetry.Metrics
}

func NewGateway(cfg Config, m *telemetry.Metrics) *Gateway {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 100
	}
	return &Gateway{
		cfg:      cfg,
		limiters: newLimiterPool(cfg.PerMinute, cfg.Burst),
		metrics:  m,
	}
}

// Close stops the limiter cleanup.
func (g *Gateway) Close() {
	g.limiters.Shutdown()
}

// health checks and scrapes are never rate limited
func exempt(ctx *fasthttp.RequestCtx) bool {
	switch string(ctx.Path()) {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// Middleware wraps the whole router.
func (g *Gateway) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		logger.LogRequestFast(ctx)

		if !exempt(ctx) {
			ip := ClientIP(ctx, g.cfg.TrustProxy)
			if !g.limiters.Allow(ip) {
				ctx.Response.Header.Set("Retry-After", "60")
				router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, apperr.MsgTooManyRequests)
				logger.Warn("rate_limited", "ip", ip, "path", string(ctx.Path()))
				g.done(ctx, start)
				return
			}
		}

		next(ctx)
		g.done(ctx, start)
	}
}

func (g *Gateway) done(ctx *fasthttp.RequestCtx, start time.Time) {
	status := ctx.Response.StatusCode()
	g.metrics.Request(string(ctx.Method()), status)
	logger.Debug("request_done",
		"method", string(ctx.Method()),
		"route", router.Route(ctx),
		"status", status,
		"duration", time.Since(start),
	)
}

// RequireAdmin guards a handler with the admin key. A missing header is a
// 400 and a wrong key a 403. With no key configured every call is refused.
func (g *Gateway) RequireAdmin(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		token := router.Header(ctx, AdminHeader)
		if token == "" {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, apperr.MsgTokenRequired)
			return
		}
		if !g.validAdminKey(token) {
			logger.Warn("admin_key_rejected", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
			router.WriteError(ctx, apperr.Unauthorized(apperr.MsgUnauthorized))
			return
		}
		next(ctx)
	}
}

func (g *Gateway) validAdminKey(token string) bool {
	if g.cfg.AdminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.AdminKey)) == 1
}

// ClientIP is the address requests are limited by.
func ClientIP(ctx *fasthttp.RequestCtx, trustProxy bool) string {
	if trustProxy {
		if fwd := router.Header(ctx, "X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xr := router.Header(ctx, "X-Real-Ip"); xr != "" {
			return xr
		}
	}
	host := ctx.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
