package logger

import (
	"strings"

	"github.com/valyala/fasthttp"
)

func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		parts = append(parts, key+"="+redactHeaderValue(key, string(v)))
	})
	return strings.Join(parts, "; ")
}

func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request",
		"method", string(ctx.Method()),
		"remote", ctx.RemoteAddr().String(),
		"url", string(ctx.URI().RequestURI()),
		"headers", SafeHeadersFast(ctx),
	)
}
