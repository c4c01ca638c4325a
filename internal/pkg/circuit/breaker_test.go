package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := New("test", threshold, time.Minute)
	b.now = func() time.Time { return now }
	b.OnStateChange(func(string, State, State) {})
	return b, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerHalfOpenAdmitsOneProbe(t *testing.T) {
	b, now := newTestBreaker(1)
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	*now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "second caller must wait for the probe")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1)
	b.RecordFailure()
	*now = now.Add(2 * time.Minute)
	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerDo(t *testing.T) {
	b, _ := newTestBreaker(1)
	boom := errors.New("boom")
	business := errors.New("insufficient margin")

	err := b.Do(func() error { return business }, func(err error) bool { return !errors.Is(err, business) })
	assert.ErrorIs(t, err, business)
	assert.Equal(t, StateClosed, b.State(), "filtered errors do not count")

	err = b.Do(func() error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err = b.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}
