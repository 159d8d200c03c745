package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-stats-etl/internal/observability"
	"github.com/couchcryptid/covid-stats-etl/internal/pipeline"
)

func waitRun(t *testing.T, runs <-chan int) int {
	t.Helper()
	select {
	case n := <-runs:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled run")
		return 0
	}
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runs := make(chan int, 4)
	count := 0
	job := func(context.Context) error {
		count++
		runs <- count
		return nil
	}

	s := pipeline.NewScheduler(job, time.Hour, clock, discardLogger(), observability.NewMetricsForTesting())
	require.Error(t, s.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Equal(t, 1, waitRun(t, runs), "first run starts immediately")
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.NoError(t, s.CheckReadiness(context.Background()))

	clock.Advance(59 * time.Minute)
	select {
	case <-runs:
		t.Fatal("ran before the interval elapsed")
	default:
	}

	clock.Advance(time.Minute)
	assert.Equal(t, 2, waitRun(t, runs))

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_FailedRunKeepsScheduling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runs := make(chan int, 4)
	count := 0
	job := func(context.Context) error {
		count++
		runs <- count
		if count == 1 {
			return errors.New("fetch failed")
		}
		return nil
	}

	s := pipeline.NewScheduler(job, time.Minute, clock, discardLogger(), observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitRun(t, runs)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Error(t, s.CheckReadiness(ctx), "not ready after a failed run")

	clock.Advance(time.Minute)
	waitRun(t, runs)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.NoError(t, s.CheckReadiness(ctx))

	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	s := pipeline.NewScheduler(func(context.Context) error {
		calls++
		return nil
	}, time.Hour, clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, calls)
}
