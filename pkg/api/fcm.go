package api

import (
	"github.com/valyala/fasthttp"

	"slunch/internal/subscription"
	"slunch/pkg/api/router"
	"slunch/pkg/state/logger"
)

const msgTokenDeleted = "토큰이 삭제되었어요."

// subscriptionRoutes serves CRUD for one subscription kind. The token comes
// from the query string on GET and from the JSON body otherwise; DELETE also
// accepts it as a query parameter.
type subscriptionRoutes[T subscription.Subscription] struct {
	c *subscription.Collection[T]
}

func registerSubscriptions[T subscription.Subscription](r *router.Router, path string, c *subscription.Collection[T]) {
	h := subscriptionRoutes[T]{c: c}
	r.GET(path, h.get)
	r.POST(path, h.create)
	r.PUT(path, h.update)
	r.DELETE(path, h.remove)
}

func (h subscriptionRoutes[T]) get(ctx *fasthttp.RequestCtx) {
	sub, err := h.c.Get(router.Query(ctx, "token"))
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, sub)
}

func (h subscriptionRoutes[T]) create(ctx *fasthttp.RequestCtx) {
	var sub T
	if err := router.DecodeBody(ctx, &sub); err != nil {
		router.WriteError(ctx, err)
		return
	}
	sub, err := h.c.Create(sub)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	logger.Info("subscription_created", "kind", h.c.Name(), "token", logger.MaskToken(sub.GetToken()), "time", sub.GetTime())
	router.WriteJSON(ctx, sub)
}

func (h subscriptionRoutes[T]) update(ctx *fasthttp.RequestCtx) {
	var sub T
	if err := router.DecodeBody(ctx, &sub); err != nil {
		router.WriteError(ctx, err)
		return
	}
	sub, err := h.c.Update(sub)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	logger.Info("subscription_updated", "kind", h.c.Name(), "token", logger.MaskToken(sub.GetToken()), "time", sub.GetTime())
	router.WriteJSON(ctx, sub)
}

func (h subscriptionRoutes[T]) remove(ctx *fasthttp.RequestCtx) {
	token := router.Query(ctx, "token")
	if token == "" && len(ctx.PostBody()) > 0 {
		var body struct {
			Token string `json:"token"`
		}
		if err := router.DecodeBody(ctx, &body); err != nil {
			router.WriteError(ctx, err)
			return
		}
		token = body.Token
	}
	if err := h.c.Delete(token); err != nil {
		router.WriteError(ctx, err)
		return
	}
	logger.Info("subscription_deleted", "kind", h.c.Name(), "token", logger.MaskToken(token))
	router.WriteJSON(ctx, map[string]string{"message": msgTokenDeleted})
}
