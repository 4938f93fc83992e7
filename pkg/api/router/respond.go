package router

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"slunch/pkg/apperr"
	"slunch/pkg/state/logger"
)

// WriteJSON writes v with status 200.
func WriteJSON(ctx *fasthttp.RequestCtx, v any) {
	WriteJSONStatus(ctx, fasthttp.StatusOK, v)
}

func WriteJSONStatus(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		logger.Error("response_encode_failed", "path", string(ctx.Path()), "error", err)
	}
}

// WriteJSONError writes {"message": msg}.
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, msg string) {
	WriteJSONStatus(ctx, status, map[string]string{"message": msg})
}

// WriteError maps err to its status and client message. Server side
// failures are logged with the full cause.
func WriteError(ctx *fasthttp.RequestCtx, err error) {
	status := apperr.Status(err)
	if status >= fasthttp.StatusInternalServerError {
		logger.Error("request_failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "status", status, "error", err)
	}
	WriteJSONError(ctx, status, apperr.Message(err))
}
