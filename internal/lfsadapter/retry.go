package lfsadapter

import (
	"context"

	"github.com/avast/retry-go/v4"
)

// retryDo runs fn up to attempts times (at least once), using
// retry-go's defaults for backoff between attempts. With attempts of 1,
// the adapter's default, the first error is returned as is.
func retryDo(ctx context.Context, attempts uint, fn func() error) error {
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
	)
}
