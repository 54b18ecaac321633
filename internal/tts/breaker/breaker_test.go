package breaker_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablehq/storyvoice/internal/tts/breaker"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	state, failures := b.Snapshot()
	assert.Equal(t, breaker.StateOpen, state)
	assert.Equal(t, 3, failures)
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 3, ResetTimeout: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.True(t, b.Allow(), "non-consecutive failures must not trip the breaker")
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	b.RecordFailure()
	require.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)

	assert.True(t, b.Allow(), "first caller after the timeout gets the trial")
	assert.False(t, b.Allow(), "second caller is blocked while the trial is in flight")

	b.RecordSuccess()
	state, failures := b.Snapshot()
	assert.Equal(t, breaker.StateClosed, state)
	assert.Zero(t, failures)
	assert.True(t, b.Allow())
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	state, _ := b.Snapshot()
	assert.Equal(t, breaker.StateOpen, state)
	assert.False(t, b.Allow(), "timeout restarts after a failed trial")
}

func TestBreakerConcurrentTrialClaim(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load(), "exactly one worker may run the half-open trial")
}

func TestSnapshotDoesNotTransition(t *testing.T) {
	b := breaker.New(breaker.Settings{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	state, _ := b.Snapshot()
	assert.Equal(t, breaker.StateOpen, state, "snapshot must not promote an expired open breaker")

	assert.True(t, b.Allow())
}

func TestRegistryLazyAndShared(t *testing.T) {
	r := breaker.NewRegistry(map[string]breaker.Settings{
		"elevenlabs": {FailureThreshold: 1, ResetTimeout: time.Minute},
	})

	b1 := r.Get("elevenlabs")
	b2 := r.Get("elevenlabs")
	require.Same(t, b1, b2)

	assert.False(t, r.AnyOpen())
	b1.RecordFailure()
	assert.True(t, r.AnyOpen())

	// unknown providers get default settings
	other := r.Get("openai")
	assert.True(t, other.Allow())
}
