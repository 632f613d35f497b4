package observability

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/TheMaster3558/toppy/internal/config"
)

// InitSentry enables error reporting. It reports false, with no error, when
// no DSN is configured.
func InitSentry(cfg config.SentryConfig, release string) (bool, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return false, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: cfg.Environment,
		Release:     release,
		SampleRate:  sampleRate,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReportPostError sends a failed auto-post to Sentry, tagged with the site.
// It is a no-op before InitSentry succeeds.
func ReportPostError(site string, err error) {
	if err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	if hub.Client() == nil {
		return
	}
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("site", site)
	})
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  "autopost",
		Message:   "post to " + site + " failed",
		Level:     sentry.LevelError,
		Timestamp: time.Now().UTC(),
	}, nil)
	hub.CaptureException(err)
}

// FlushSentry waits up to timeout for queued events.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
