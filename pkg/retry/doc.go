// Package retry holds the two retry layers of a describer run.
//
// Controller is the publish loop. It acquires a candidate image, shrinks it
// when it is over the size limit and publishes it, and on failure alternates
// between shrinking the artifact it already has (even attempts) and asking
// the supplier for a different candidate (odd attempts):
//
//	ctrl := retry.NewController(retry.ControllerConfig{
//		MaxAttempts:  6,
//		MaxSizeBytes: 3_000_000,
//		ResizeFactor: 0.9,
//		Logger:       log,
//	})
//	record, err := ctrl.Run(ctx, supplier, acquire, imaging.Shrink, publish)
//
// Do is the per-request layer used by the HTTP clients. It retries network,
// rate limit and server errors with a backoff chosen by error type:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return client.fetch(ctx)
//	}, &retry.Config{MaxAttempts: 3, Logger: log})
package retry
