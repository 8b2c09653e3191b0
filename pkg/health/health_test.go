package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voilajsx/appkit-sub008/pkg/health"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("no checks is healthy", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(context.Background(), nil)
		require.True(t, resp.Healthy())
		require.NoError(t, resp.Err())
	})

	t.Run("all pass", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(context.Background(), health.Checks{
			"a": func(context.Context) error { return nil },
			"b": func(context.Context) error { return nil },
		})
		require.Equal(t, health.StatusHealthy, resp.Status)
		require.Len(t, resp.Checks, 2)
		require.Equal(t, health.StatusHealthy, resp.Checks["a"].Status)
	})

	t.Run("one failure", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(context.Background(), health.Checks{
			"backend": func(context.Context) error { return errors.New("connection refused") },
			"write":   func(context.Context) error { return nil },
		})
		require.False(t, resp.Healthy())
		require.Equal(t, "connection refused", resp.Checks["backend"].Error)
		require.Equal(t, health.StatusHealthy, resp.Checks["write"].Status)

		err := resp.Err()
		require.ErrorIs(t, err, health.ErrCheckFailed)
		require.Contains(t, err.Error(), "backend: connection refused")
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(context.Background(), health.Checks{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}, health.WithTimeout(20*time.Millisecond))

		require.False(t, resp.Healthy())
		require.Contains(t, resp.Checks["slow"].Error, health.ErrCheckTimeout.Error())
	})
}
