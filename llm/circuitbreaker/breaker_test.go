package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, 60*time.Second, cfg.ResetTimeout)
	assert.Equal(t, 1, cfg.HalfOpenMaxCalls)
	assert.Nil(t, cfg.OnStateChange)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		cfg           *Config
		wantThreshold int
		wantReset     time.Duration
		wantHalfOpen  int
	}{
		{"nil config uses defaults", nil, 5, 60 * time.Second, 1},
		{"zero values corrected", &Config{HalfOpenMaxCalls: -1}, 5, 60 * time.Second, 1},
		{"custom values preserved", &Config{Threshold: 2, ResetTimeout: time.Second, HalfOpenMaxCalls: 3}, 2, time.Second, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.cfg)
			assert.Equal(t, tt.wantThreshold, got.Threshold)
			assert.Equal(t, tt.wantReset, got.ResetTimeout)
			assert.Equal(t, tt.wantHalfOpen, got.HalfOpenMaxCalls)
		})
	}
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

func newTestBreaker(threshold int, reset time.Duration) (*breaker, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("gpt", &Config{Threshold: threshold, ResetTimeout: reset}, zap.NewNop()).(*breaker)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	boom := errors.New("connection refused")

	require.NoError(t, cb.Allow())
	cb.Record(boom)
	assert.Equal(t, StateClosed, cb.State())

	require.NoError(t, cb.Allow())
	cb.Record(boom)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.Record(errors.New("boom"))
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrTooManyCallsInHalfOpen)

	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(1, time.Minute)
	cb.Record(errors.New("boom"))
	*now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())

	cb.Record(errors.New("still down"))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	cb.Record(errors.New("[LLM_UNAUTHORIZED] bad key"))
	cb.Record(context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_CallAndReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	err := cb.Call(context.Background(), func(context.Context) error { return errors.New("down") })
	require.Error(t, err)

	called := false
	err = cb.Call(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []string
		done    = make(chan struct{}, 1)
	)
	cb := NewCircuitBreaker("claude", &Config{
		Threshold: 1,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			changes = append(changes, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
			done <- struct{}{}
		},
	}, nil)

	cb.Record(errors.New("boom"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"claude:Closed->Open"}, changes)
}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

func TestGroup_GetIsStable(t *testing.T) {
	g := NewGroup(&Config{Threshold: 1}, zap.NewNop())
	a := g.Get("gpt")
	assert.Same(t, a, g.Get("gpt"))

	a.Record(errors.New("boom"))
	states := g.States()
	assert.Equal(t, StateOpen, states["gpt"])
	assert.Len(t, states, 1)
}
