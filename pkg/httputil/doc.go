// Package httputil provides retry helpers for remote taxonomy sources.
//
// # Retry
//
// [Retry] wraps a remote call with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Callers mark an error as transient by wrapping it with [Retryable]. Every
// other error is returned immediately:
//
//	err := httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// The delay doubles after each failed attempt and the wait is abandoned as
// soon as ctx is cancelled.
//
// # Defaults
//
// [RetryWithBackoff] uses 3 attempts with a 1 second base delay. The
// taxonomy store configures its own attempt count for bulk exports.
package httputil
