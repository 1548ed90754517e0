package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/errors"
)

// InitSentry enables error reporting when a DSN is configured. It returns
// false when reporting stays disabled.
func InitSentry(settings conf.SentrySettings, release string) (bool, error) {
	if settings.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     release,
	})
	if err != nil {
		return false, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfig).
			Context("operation", "sentry_init").
			Build()
	}
	return true, nil
}

// CaptureError reports err with its category and component as tags. It is a
// no-op when Sentry is not initialized.
func CaptureError(err error) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			scope.SetTag("category", string(ee.GetCategory()))
			if ee.GetComponent() != "" {
				scope.SetTag("component", ee.GetComponent())
			}
			if ctx := ee.GetContext(); len(ctx) > 0 {
				scope.SetContext("error_context", ctx)
			}
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry(timeout time.Duration) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.Flush(timeout)
}
