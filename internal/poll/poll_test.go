package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	var calls atomic.Int32
	err := Until(context.Background(), Options{Interval: time.Hour, Timeout: time.Second, Immediate: true},
		func(context.Context) (bool, error) {
			calls.Add(1)
			return true, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUntil_WaitsOneIntervalWithoutImmediate(t *testing.T) {
	start := time.Now()
	err := Until(context.Background(), Options{Interval: 50 * time.Millisecond, Timeout: time.Second},
		func(context.Context) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestUntil_EventualSuccess(t *testing.T) {
	var calls atomic.Int32
	err := Until(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: time.Second, Immediate: true},
		func(context.Context) (bool, error) {
			return calls.Add(1) == 3, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUntil_Timeout(t *testing.T) {
	err := Until(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond},
		func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntil_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Until(ctx, Options{Interval: 5 * time.Millisecond, Timeout: time.Minute},
		func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUntil_ConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := Until(context.Background(), Options{Interval: 5 * time.Millisecond, Immediate: true},
		func(context.Context) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestUntil_InvalidInterval(t *testing.T) {
	err := Until(context.Background(), Options{}, func(context.Context) (bool, error) { return true, nil })
	assert.Error(t, err)
}
