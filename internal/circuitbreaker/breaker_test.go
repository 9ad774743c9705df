package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	cb := New(Options{FailureThreshold: 3})
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")
	assert.True(t, cb.Allow(), "Closed breaker should allow calls")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(Options{FailureThreshold: 3, CooldownPeriod: time.Hour})

	cb.RecordFailure(errUpstream)
	cb.RecordFailure(errUpstream)
	assert.Equal(t, StateClosed, cb.GetState(), "Below threshold should stay closed")

	cb.RecordFailure(errUpstream)
	assert.Equal(t, StateOpen, cb.GetState(), "Circuit should be open after threshold")
	assert.False(t, cb.Allow(), "Open breaker should reject calls during cooldown")
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Options{FailureThreshold: 2})

	cb.RecordFailure(errUpstream)
	cb.RecordSuccess()
	cb.RecordFailure(errUpstream)
	assert.Equal(t, StateClosed, cb.GetState(), "Failures must be consecutive to trip")
	assert.Equal(t, 1, cb.Failures())
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	cb := New(Options{FailureThreshold: 1, SuccessThreshold: 1, CooldownPeriod: 50 * time.Millisecond})

	cb.RecordFailure(errUpstream)
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, cb.Allow(), "Cooldown elapsed, probe should be allowed")
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should close after successful probe")
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := New(Options{FailureThreshold: 5, CooldownPeriod: 50 * time.Millisecond})
	for i := 0; i < 5; i++ {
		cb.RecordFailure(errUpstream)
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordFailure(errUpstream)
	assert.Equal(t, StateOpen, cb.GetState(), "A failed half-open probe should reopen immediately")
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_CallbackExecution(t *testing.T) {
	var (
		mu       sync.Mutex
		executed bool
		gotErr   error
		done     = make(chan struct{})
	)

	cb := New(Options{
		FailureThreshold: 1,
		OnTrip: func(failures int, lastErr error) {
			mu.Lock()
			executed = true
			gotErr = lastErr
			mu.Unlock()
			close(done)
		},
	})

	cb.RecordFailure(errUpstream)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback was not executed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, executed, "Callback should be executed when circuit trips")
	assert.ErrorIs(t, gotErr, errUpstream)
}

func TestCircuitBreaker_ManualReset(t *testing.T) {
	cb := New(Options{FailureThreshold: 1, CooldownPeriod: time.Hour})
	cb.RecordFailure(errUpstream)
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should be closed after manual reset")
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())

	text, err := StateHalfOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "half-open", string(text))
}
