// Package observability wires error reporting. Sentry stays disabled when no
// DSN is configured; the capture helpers are then no-ops.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureRequestError reports an unexpected request failure tagged with its
// route.
func CaptureRequestError(err error, method, route, requestID string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", method)
		scope.SetTag("route", route)
		if requestID != "" {
			scope.SetTag("request_id", requestID)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic.
func CapturePanic(recovered any, stack []byte, route string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("route", route)
		scope.SetExtra("panic", recovered)
		scope.SetExtra("stack", string(stack))
		sentry.CaptureMessage("panic in request")
	})
}
