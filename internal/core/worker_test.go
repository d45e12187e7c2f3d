package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerPoolRunsAllActionsSuccessfully(t *testing.T) {
	var count atomic.Int32

	pool := NewWorkerPool(discardLogger(), func(ctx context.Context, a Action) error {
		count.Add(1)

		return nil
	})

	actions := make([]Action, 20)
	for i := range actions {
		actions[i] = Action{ApparentPath: "file"}
	}

	errs := pool.Run(context.Background(), actions, 4)

	assert.Empty(t, errs)
	assert.Equal(t, int32(20), count.Load())

	succeeded, failed, dropped := pool.Stats()
	assert.Equal(t, 20, succeeded)
	assert.Equal(t, 0, failed)
	assert.Equal(t, int64(0), dropped)
}

func TestWorkerPoolRecordsSkipErrorsWithoutAbortingRun(t *testing.T) {
	pool := NewWorkerPool(discardLogger(), func(ctx context.Context, a Action) error {
		if a.ApparentPath == "bad.txt" {
			return ErrIntegrityViolation
		}

		return nil
	})

	actions := []Action{
		{ApparentPath: "good1.txt"},
		{ApparentPath: "bad.txt"},
		{ApparentPath: "good2.txt"},
	}

	errs := pool.Run(context.Background(), actions, 4)

	require.Len(t, errs, 1)
	assert.Equal(t, "bad.txt", errs[0].Action.ApparentPath)
	assert.Equal(t, ErrorSkip, errs[0].Tier)

	succeeded, failed, _ := pool.Stats()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
}

func TestWorkerPoolStopsDispatchingAfterFatalError(t *testing.T) {
	var dispatched atomic.Int32

	pool := NewWorkerPool(discardLogger(), func(ctx context.Context, a Action) error {
		dispatched.Add(1)

		if a.ApparentPath == "fatal.txt" {
			return ErrDestinationUnavailable
		}

		<-ctx.Done()

		return ctx.Err()
	})

	actions := make([]Action, 50)
	actions[0] = Action{ApparentPath: "fatal.txt"}

	for i := 1; i < len(actions); i++ {
		actions[i] = Action{ApparentPath: "slow.txt"}
	}

	errs := pool.Run(context.Background(), actions, 4)

	assert.NotEmpty(t, errs)

	var sawFatal bool

	for _, e := range errs {
		if errors.Is(e.Err, ErrDestinationUnavailable) {
			sawFatal = true
		}
	}

	assert.True(t, sawFatal)

	// Once the fatal error cancels the run, workers take no further jobs,
	// so most of the queued actions are never dispatched.
	assert.Less(t, int(dispatched.Load()), len(actions))
}

func TestWorkerPoolRecoversFromPanic(t *testing.T) {
	pool := NewWorkerPool(discardLogger(), func(ctx context.Context, a Action) error {
		if a.ApparentPath == "panics.txt" {
			panic("boom")
		}

		return nil
	})

	errs := pool.Run(context.Background(), []Action{{ApparentPath: "panics.txt"}, {ApparentPath: "ok.txt"}}, 4)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Err.Error(), "panic")
}

func TestWorkerPoolEmptyActionsIsNoop(t *testing.T) {
	pool := NewWorkerPool(discardLogger(), func(ctx context.Context, a Action) error {
		t.Fatal("fn should never be called")

		return nil
	})

	errs := pool.Run(context.Background(), nil, 4)
	assert.Empty(t, errs)
}
