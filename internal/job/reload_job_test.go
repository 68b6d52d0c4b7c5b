package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReloadJobRun(t *testing.T) {
	calls := 0
	j := NewReloadJob("", ReloadFunc(func(ctx context.Context) (ReloadSummary, error) {
		calls++
		return ReloadSummary{Generation: 2, Chunks: 10}, nil
	}))
	require.Equal(t, "document_reload", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 1, calls)
}

func TestReloadJobPropagatesError(t *testing.T) {
	j := NewReloadJob("cron_reload", ReloadFunc(func(ctx context.Context) (ReloadSummary, error) {
		return ReloadSummary{}, errors.New("source offline")
	}))
	require.EqualError(t, j.Run(context.Background()), "source offline")
	require.NoError(t, NewReloadJob("nil", nil).Run(context.Background()))
}
