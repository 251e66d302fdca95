package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry is a no-op without a DSN, so local runs need no configuration.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// Request bodies carry passwords and refresh tokens.
			if event.Request != nil {
				event.Request.Data = ""
				event.Request.Headers = nil
			}
			return event
		},
	})
}

func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
