// Package health runs named readiness checks and aggregates their results.
//
// Checks share the func(context.Context) error signature of
// storage.Healthcheck and storage.WriteCheck, run in parallel and are
// bounded by one timeout:
//
//	resp := health.Run(ctx, health.Checks{
//	    "backend": storage.Healthcheck(store),
//	    "write":   storage.WriteCheck(store),
//	}, health.WithTimeout(3*time.Second))
//	if err := resp.Err(); err != nil {
//	    // one or more checks failed
//	}
//
// A check that is still running when the timeout fires reports an error
// wrapping [ErrCheckTimeout].
package health
