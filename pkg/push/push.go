// Package push delivers notifications to devices.
package push

import (
	"context"

	"slunch/pkg/apperr"
	"slunch/pkg/state/logger"
)

// ErrInvalidToken is returned, possibly wrapped, when the device token will
// never accept a delivery again.
var ErrInvalidToken = apperr.ErrInvalidToken

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// LogSender only logs. It stands in for FCM when no credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, token, title, body string) error {
	logger.Info("push_dry_run", "token", logger.MaskToken(token), "title", title, "body", body)
	return nil
}
