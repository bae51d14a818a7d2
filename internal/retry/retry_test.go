package retry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions(attempts int) Options {
	return Options{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "flaky", fastOptions(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_LogsToOptionsLogger(t *testing.T) {
	var buf bytes.Buffer
	opts := fastOptions(2)
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	err := Do(context.Background(), "noisy", opts, func(context.Context) error {
		return errors.New("down")
	})

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 1, strings.Count(buf.String(), "Operation failed, retrying"))
	assert.Contains(t, buf.String(), "operation=noisy")
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "broken", fastOptions(3), func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad config")
	calls := 0
	err := Do(context.Background(), "permanent", fastOptions(5), func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, "cancelled", Options{MaxAttempts: 3, InitialDelay: time.Hour}, func(context.Context) error {
		return errors.New("boom")
	})

	require.ErrorIs(t, err, context.Canceled)
}
