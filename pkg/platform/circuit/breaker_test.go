package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	b := New("email")

	assert.Equal(t, "email", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
	assert.False(t, b.IsOpen())
}

func TestRecordFailure_OpensOnConsecutiveFailures(t *testing.T) {
	b := New("email", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		require.False(t, useFallback, "failure %d", i+1)
		require.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.False(t, b.Allow())

	// Already open: fallback without another transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestRecordSuccess_InterruptsFailureStreak(t *testing.T) {
	b := New("sms", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestRecordSuccess_ClosesAfterSuccessThreshold(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		wantOpen  bool
	}{
		{name: "one success keeps it open", successes: 1, wantOpen: true},
		{name: "threshold reached closes", successes: 2, wantOpen: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("email", WithFailureThreshold(1), WithSuccessThreshold(2))
			b.RecordFailure()

			var change StateChange
			for i := 0; i < tt.successes; i++ {
				_, change = b.RecordSuccess()
			}
			assert.Equal(t, tt.wantOpen, b.IsOpen())
			assert.Equal(t, !tt.wantOpen, change.Closed)
		})
	}
}

func TestRecordFailure_RestartsRecovery(t *testing.T) {
	b := New("email", WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestState_HalfOpenProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := New("sms", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(func() time.Time { return now }))

	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(59 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestReset(t *testing.T) {
	b := New("email", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
