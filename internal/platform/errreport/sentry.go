package errreport

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// Reporter forwards non-fatal failures (route computation, storage writes)
// to Sentry. A Reporter built without a DSN only logs.
type Reporter struct {
	log     *zap.Logger
	enabled bool
}

// New initializes Sentry when cfg.DSN is set.
func New(cfg Config, log *zap.Logger) (*Reporter, error) {
	r := &Reporter{log: log}
	if cfg.DSN == "" {
		log.Warn("Sentry DSN not configured - error tracking disabled")
		return r, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}

	r.enabled = true
	log.Info("Sentry initialized", zap.String("environment", cfg.Environment))
	return r, nil
}

// Capture reports err with tags. Nil errors and nil receivers are ignored.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}

	fields := make([]zap.Field, 0, len(tags)+1)
	fields = append(fields, zap.Error(err))
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	r.log.Warn("reported error", fields...)

	if !r.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events before shutdown.
func (r *Reporter) Flush(timeout time.Duration) {
	if r == nil || !r.enabled {
		return
	}
	sentry.Flush(timeout)
}
