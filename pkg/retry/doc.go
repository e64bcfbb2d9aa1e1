// Package retry runs an operation again after transient failures, with
// exponential backoff and optional jitter.
//
// The default predicate retries only errors that implement Temporary() bool
// and return true, which is how storage errors mark SQLITE_BUSY.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return db.WithTransaction(ctx, fn)
//	})
//
// Context cancellation stops the loop immediately, both before an attempt and
// while waiting between attempts.
package retry
