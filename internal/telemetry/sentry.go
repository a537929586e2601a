// Package telemetry reports server errors to Sentry when a DSN is
// configured. Every function is a no-op otherwise.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/claimdesk/internal/config"
)

var enabled atomic.Bool

// Init configures the Sentry client. An empty DSN leaves reporting off.
func Init(cfg config.MetricsConfig, release string) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "claimdesk@" + release,
		SampleRate:       1.0,
		AttachStacktrace: true,
		ServerName:       "",
		BeforeSend:       scrub,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	enabled.Store(true)
	slog.Info("error reporting enabled", "environment", cfg.Environment)
	return nil
}

// scrub drops data that may identify patients or staff.
func scrub(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Data = ""
		event.Request.QueryString = ""
		delete(event.Request.Headers, "Cookie")
		delete(event.Request.Headers, "X-Api-Key")
	}
	return event
}

// CaptureError reports err with the component and request id as tags.
func CaptureError(ctx context.Context, err error, component string) {
	if !enabled.Load() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		if id := middleware.GetReqID(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits up to timeout for queued events to be sent.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
