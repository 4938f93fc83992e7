package api

import (
	"github.com/valyala/fasthttp"

	"slunch/pkg/api/router"
	"slunch/pkg/models"
)

const (
	msgNoticeDeleted  = "공지가 삭제되었습니다."
	msgNoticesCleared = "모든 공지가 삭제되었습니다."
)

func (a *API) ListNotices(ctx *fasthttp.RequestCtx) {
	list, err := a.d.Notices.List()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, list)
}

func (a *API) CreateNotice(ctx *fasthttp.RequestCtx) {
	var n models.Notice
	if err := router.DecodeBody(ctx, &n); err != nil {
		router.WriteError(ctx, err)
		return
	}
	n, err := a.d.Notices.Create(n)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, n)
}

func (a *API) UpdateNotice(ctx *fasthttp.RequestCtx) {
	var n models.Notice
	if err := router.DecodeBody(ctx, &n); err != nil {
		router.WriteError(ctx, err)
		return
	}
	n, err := a.d.Notices.Update(router.PathParam(ctx, "id"), n)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, n)
}

func (a *API) DeleteNotice(ctx *fasthttp.RequestCtx) {
	if err := a.d.Notices.Delete(router.PathParam(ctx, "id")); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, map[string]string{"message": msgNoticeDeleted})
}

func (a *API) ClearNotices(ctx *fasthttp.RequestCtx) {
	if err := a.d.Notices.Clear(); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, map[string]string{"message": msgNoticesCleared})
}
