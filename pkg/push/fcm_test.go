package push

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"slunch/pkg/apperr"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/oauth2"
)

func newTestFCM(t *testing.T, handler fasthttp.RequestHandler) *FCM {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	f := NewFCMWithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "at-1"}), "slunch-test", "http://fcm.test", time.Second)
	f.client.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	return f
}

func TestFCMSendSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotMsg fcmMessage
	f := newTestFCM(t, func(ctx *fasthttp.RequestCtx) {
		gotAuth = string(ctx.Request.Header.Peek("Authorization"))
		gotPath = string(ctx.Path())
		_ = json.Unmarshal(ctx.PostBody(), &gotMsg)
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(`{"name":"projects/slunch-test/messages/1"}`)
	})

	if err := f.Send(context.Background(), "T1", "🍴 오늘의 급식", "rice / soup"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer at-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v1/projects/slunch-test/messages:send" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotMsg.Message.Token != "T1" || gotMsg.Message.Notification.Body != "rice / soup" {
		t.Fatalf("unexpected payload %+v", gotMsg)
	}
}

func TestFCMSendUnregistered(t *testing.T) {
	f := newTestFCM(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",
			"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`)
	})
	err := f.Send(context.Background(), "dead", "t", "b")
	if !apperr.IsInvalidToken(err) {
		t.Fatalf("want invalid token, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		invalid   bool
		transient bool
	}{
		{"bad token", 400, `{"error":{"status":"INVALID_ARGUMENT","message":"The registration token is not a valid FCM registration token"}}`, true, false},
		{"bad payload", 400, `{"error":{"status":"INVALID_ARGUMENT","message":"Invalid JSON payload"}}`, false, false},
		{"quota", 429, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, false, true},
		{"server", 503, ``, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.status, []byte(tt.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if apperr.IsInvalidToken(err) != tt.invalid || apperr.IsTransient(err) != tt.transient {
				t.Fatalf("classify(%d) = %v", tt.status, err)
			}
		})
	}
	if classify(200, nil) != nil {
		t.Fatalf("2xx must succeed")
	}
}
