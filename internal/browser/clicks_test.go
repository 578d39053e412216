package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitClick_ReturnsOnceSettled(t *testing.T) {
	calls := 0
	start := time.Now()
	outcome, err := awaitClick(context.Background(), 5*time.Second, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return clickPending, nil
		}
		return clickSettled, nil
	})
	require.NoError(t, err)
	assert.Equal(t, clickSettled, outcome)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitClick_NoChangeIsBoundedAndNotAnError(t *testing.T) {
	start := time.Now()
	outcome, err := awaitClick(context.Background(), 300*time.Millisecond, func(context.Context) (string, error) {
		return clickPending, nil
	})
	require.NoError(t, err)
	assert.Equal(t, clickPending, outcome)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitClick_EvaluationErrorsKeepPolling(t *testing.T) {
	calls := 0
	outcome, err := awaitClick(context.Background(), 5*time.Second, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("execution context was destroyed")
		}
		return clickReplaced, nil
	})
	require.NoError(t, err)
	assert.Equal(t, clickReplaced, outcome)
}

func TestAwaitClick_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := awaitClick(ctx, time.Second, func(context.Context) (string, error) {
		return clickPending, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettleTimeout(t *testing.T) {
	assert.Equal(t, clickSettleTimeout, settleTimeout(45*time.Second))
	assert.Equal(t, 2*time.Second, settleTimeout(2*time.Second))
	assert.Equal(t, clickSettleTimeout, settleTimeout(0))
	// nine clicks stay well inside a five minute request
	assert.Less(t, 9*settleTimeout(45*time.Second), 5*time.Minute)
}

func TestClickJS_QuotesToken(t *testing.T) {
	js := clickStateJS(`a"b`)
	assert.Contains(t, js, `"a\"b"`)
	assert.Contains(t, js, `"settled"`)
	assert.Contains(t, clickWatchJS("t1"), `token: "t1"`)
}
