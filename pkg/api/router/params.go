package router

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"slunch/pkg/apperr"
)

func Query(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// QueryBool accepts true/false, 1/0 and yes/no. Anything else is def.
func QueryBool(ctx *fasthttp.RequestCtx, key string, def bool) bool {
	switch strings.ToLower(Query(ctx, key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

func QueryInt(ctx *fasthttp.RequestCtx, key string, def int) int {
	if n, err := strconv.Atoi(Query(ctx, key)); err == nil {
		return n
	}
	return def
}

func Header(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.Request.Header.Peek(key)))
}

func PathParam(ctx *fasthttp.RequestCtx, name string) string {
	if s, ok := ctx.UserValue(name).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// DecodeBody decodes the JSON request body into v. An empty body or a
// malformed document is a validation error.
func DecodeBody(ctx *fasthttp.RequestCtx, v any) error {
	body := ctx.PostBody()
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Validation(apperr.MsgInvalidBody)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Validation(apperr.MsgInvalidBody)
	}
	return nil
}
