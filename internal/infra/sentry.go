package infra

import (
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry configures error reporting when SENTRY_DSN is set. The returned
// flush func is always safe to call.
func InitSentry(cfg *Config) (func(), error) {
	if cfg == nil || strings.TrimSpace(cfg.SentryDSN) == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     "mediagen@" + Version,
		Debug:       cfg.AppEnv == "development",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}

// Version is stamped at build time with -ldflags "-X mediagen/internal/infra.Version=...".
var Version = "dev"

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "X-Api-Key":
			out[k] = "[filtered]"
		default:
			out[k] = v
		}
	}
	return out
}
