package push

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"slunch/pkg/apperr"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope           = "https://www.googleapis.com/auth/firebase.messaging"
	defaultFCMEndpoint = "https://fcm.googleapis.com"
	defaultFCMTimeout  = 10 * time.Second
)

type FCMConfig struct {
	// CredentialsFile is a service account JSON key.
	CredentialsFile string
	// ProjectID overrides the project found in the credentials.
	ProjectID string
	Endpoint  string
	Timeout   time.Duration
}

// FCM sends through the Firebase Cloud Messaging HTTP v1 API.
type FCM struct {
	client  *fasthttp.Client
	ts      oauth2.TokenSource
	url     string
	timeout time.Duration
}

// NewFCM loads service account credentials and builds a sender.
func NewFCM(ctx context.Context, cfg FCMConfig) (*FCM, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read fcm credentials")
	}
	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, errors.Wrap(err, "parse fcm credentials")
	}
	project := cfg.ProjectID
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		return nil, errors.New("fcm project id missing from config and credentials")
	}
	return NewFCMWithTokenSource(creds.TokenSource, project, cfg.Endpoint, cfg.Timeout), nil
}

// NewFCMWithTokenSource builds a sender around an existing token source.
func NewFCMWithTokenSource(ts oauth2.TokenSource, projectID, endpoint string, timeout time.Duration) *FCM {
	if endpoint == "" {
		endpoint = defaultFCMEndpoint
	}
	if timeout <= 0 {
		timeout = defaultFCMTimeout
	}
	return &FCM{
		client: &fasthttp.Client{
			Name:                "slunch-push",
			MaxIdleConnDuration: 30 * time.Second,
		},
		ts:      oauth2.ReuseTokenSource(nil, ts),
		url:     strings.TrimRight(endpoint, "/") + "/v1/projects/" + projectID + "/messages:send",
		timeout: timeout,
	}
}

type fcmMessage struct {
	Message struct {
		Token        string `json:"token"`
		Notification struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"notification"`
	} `json:"message"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (f *FCM) Send(ctx context.Context, token, title, body string) error {
	tok, err := f.ts.Token()
	if err != nil {
		return errors.Wrap(err, "fcm access token")
	}

	var msg fcmMessage
	msg.Message.Token = token
	msg.Message.Notification.Title = title
	msg.Message.Notification.Body = body
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode fcm message")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	req.SetBody(payload)

	if err := f.client.DoTimeout(req, resp, budget(ctx, f.timeout)); err != nil {
		return apperr.Transient(err, "fcm send")
	}
	return classify(resp.StatusCode(), resp.Body())
}

// budget shrinks timeout to the context deadline.
func budget(ctx context.Context, timeout time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			if left <= 0 {
				return time.Millisecond
			}
			return left
		}
	}
	return timeout
}

func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var fe fcmError
	_ = json.Unmarshal(body, &fe)
	cause := errors.Newf("fcm status %d: %s %s", status, fe.Error.Status, fe.Error.Message)

	for _, d := range fe.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			return apperr.InvalidToken(cause)
		}
	}
	switch {
	case status == fasthttp.StatusNotFound:
		return apperr.InvalidToken(cause)
	case status == fasthttp.StatusBadRequest && fe.Error.Status == "INVALID_ARGUMENT" &&
		strings.Contains(strings.ToLower(fe.Error.Message), "registration token"):
		return apperr.InvalidToken(cause)
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return apperr.Transient(cause, "fcm send")
	}
	return cause
}
