// Package router holds the fasthttp path router and the JSON response and
// parameter helpers shared by the API handlers.
package router

import (
	"strings"

	"github.com/valyala/fasthttp"

	"slunch/pkg/apperr"
)

// Router dispatches by method and path. Paths may carry {name} segments,
// which are exposed through ctx.UserValue. A trailing slash is ignored.
type Router struct {
	routes   map[string][]route
	notFound fasthttp.RequestHandler
}

type route struct {
	pattern  string
	segments []segment
	handler  fasthttp.RequestHandler
}

type segment struct {
	name    string
	isParam bool
}

func New() *Router {
	return &Router{routes: make(map[string][]route)}
}

// Handler satisfies fasthttp.RequestHandler.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())
	if method == fasthttp.MethodHead {
		method = fasthttp.MethodGet
	}
	if rt, values, ok := r.lookup(method, path); ok {
		for k, v := range values {
			ctx.SetUserValue(k, v)
		}
		ctx.SetUserValue(routeKey, rt.pattern)
		rt.handler(ctx)
		return
	}
	if allowed := r.allowed(path); len(allowed) > 0 {
		ctx.Response.Header.Set("Allow", strings.Join(allowed, ", "))
		WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	WriteJSONError(ctx, fasthttp.StatusNotFound, apperr.MsgNotFoundRoute)
}

func (r *Router) lookup(method, path string) (route, map[string]string, bool) {
	for _, rt := range r.routes[method] {
		if values, ok := match(path, rt.segments); ok {
			return rt, values, true
		}
	}
	return route{}, nil, false
}

func (r *Router) allowed(path string) []string {
	var out []string
	for _, m := range []string{fasthttp.MethodGet, fasthttp.MethodPost, fasthttp.MethodPut, fasthttp.MethodDelete} {
		if _, _, ok := r.lookup(m, path); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *Router) GET(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodGet, path, h)
}

func (r *Router) POST(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodPost, path, h)
}

func (r *Router) PUT(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodPut, path, h)
}

func (r *Router) DELETE(path string, h fasthttp.RequestHandler) {
	r.add(fasthttp.MethodDelete, path, h)
}

// NotFound registers a handler for unmatched routes.
func (r *Router) NotFound(h fasthttp.RequestHandler) {
	r.notFound = h
}

func (r *Router) add(method, path string, h fasthttp.RequestHandler) {
	r.routes[method] = append(r.routes[method], route{pattern: path, segments: parse(path), handler: h})
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parse(path string) []segment {
	parts := split(path)
	segs := make([]segment, len(parts))
	for i, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2 {
			segs[i] = segment{name: part[1 : len(part)-1], isParam: true}
		} else {
			segs[i] = segment{name: part}
		}
	}
	return segs
}

func match(path string, segs []segment) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(segs) {
		return nil, false
	}
	values := make(map[string]string)
	for i, seg := range segs {
		if seg.isParam {
			if parts[i] == "" {
				return nil, false
			}
			values[seg.name] = parts[i]
			continue
		}
		if seg.name != parts[i] {
			return nil, false
		}
	}
	return values, true
}

const routeKey = "router.route"

// Route returns the pattern that matched the request, for metric labels.
func Route(ctx *fasthttp.RequestCtx) string {
	if s, ok := ctx.UserValue(routeKey).(string); ok {
		return s
	}
	return "unmatched"
}
