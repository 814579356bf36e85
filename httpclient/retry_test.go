package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-tdclient/config"
)

func defaultPolicy(retryPost bool) retryPolicy {
	return retryPolicy{
		retryPost:    retryPost,
		budget:       config.DefaultMaxCumulativeRetryDelay,
		initialDelay: config.DefaultInitialRetryDelay,
		maxDelay:     config.DefaultMaxRetryDelay,
		multiplier:   config.DefaultRetryMultiplier,
	}
}

func TestRetryPolicyClassify(t *testing.T) {
	fault := NewNetworkError("request failed", errors.New("connection reset by peer"))

	tests := []struct {
		name      string
		verb      Verb
		retryPost bool
		status    int
		fault     error
		expected  outcome
	}{
		{"read 200", VerbRead, false, 200, nil, outcomeSuccess},
		{"upload 201", VerbUpload, false, 201, nil, outcomeSuccess},
		{"read 500", VerbRead, false, 500, nil, outcomeRetry},
		{"read 502", VerbRead, false, 502, nil, outcomeRetry},
		{"read 503", VerbRead, false, 503, nil, outcomeRetry},
		{"read 504", VerbRead, false, 504, nil, outcomeRetry},
		{"upload 500", VerbUpload, false, 500, nil, outcomeRetry},
		{"read fault", VerbRead, false, 0, fault, outcomeRetry},
		{"read 404", VerbRead, false, 404, nil, outcomeFatal},
		{"read 401", VerbRead, false, 401, nil, outcomeFatal},
		{"upload 400", VerbUpload, false, 400, nil, outcomeFatal},
		{"read 501", VerbRead, false, 501, nil, outcomeFatal},
		{"read 302", VerbRead, false, 302, nil, outcomeFatal},
		{"create 500 without post retries", VerbCreateForm, false, 500, nil, outcomeFatal},
		{"create fault without post retries", VerbCreateForm, false, 0, fault, outcomeFatal},
		{"create 500 with post retries", VerbCreateForm, true, 500, nil, outcomeRetry},
		{"create fault with post retries", VerbCreateForm, true, 0, fault, outcomeRetry},
		{"create 422 with post retries", VerbCreateForm, true, 422, nil, outcomeFatal},
		{"create 200", VerbCreateForm, false, 200, nil, outcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultPolicy(tt.retryPost)
			assert.Equal(t, tt.expected, p.classify(tt.verb, tt.status, tt.fault), "got %s", p.classify(tt.verb, tt.status, tt.fault))
		})
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := defaultPolicy(false)

	assert.False(t, p.exhausted(0))
	assert.False(t, p.exhausted(599*time.Second))
	assert.True(t, p.exhausted(600*time.Second))
	assert.True(t, p.exhausted(615*time.Second))

	zero := p
	zero.budget = 0
	assert.True(t, zero.exhausted(0), "a zero budget never sleeps")
}

func TestBackOffSchedule(t *testing.T) {
	t.Run("doubles from the initial delay up to the ceiling", func(t *testing.T) {
		b := defaultPolicy(false).newBackOff()

		expected := []time.Duration{
			5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second,
			80 * time.Second, 160 * time.Second, 300 * time.Second, 300 * time.Second,
		}
		for i, want := range expected {
			assert.Equal(t, want, b.NextBackOff(), "delay %d", i)
		}
	})

	t.Run("schedules are independent per request", func(t *testing.T) {
		p := defaultPolicy(false)
		first := p.newBackOff()
		first.NextBackOff()
		first.NextBackOff()

		second := p.newBackOff()
		assert.Equal(t, 5*time.Second, second.NextBackOff())
	})

	t.Run("jitter stays within the randomization window", func(t *testing.T) {
		p := defaultPolicy(false)
		p.jitter = 0.5
		b := p.newBackOff()

		for range 20 {
			b.Reset()
			d := b.NextBackOff()
			assert.GreaterOrEqual(t, d, 2500*time.Millisecond)
			assert.LessOrEqual(t, d, 7500*time.Millisecond+time.Nanosecond)
		}
	})
}

func TestNewRetryPolicyFallsBackToDefaultCurve(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected retryPolicy
	}{
		{
			name: "zero curve",
			cfg:  Config{MaxCumulativeRetryDelay: time.Minute, RetryMultiplier: 2},
			expected: retryPolicy{
				budget:       time.Minute,
				initialDelay: config.DefaultInitialRetryDelay,
				maxDelay:     config.DefaultMaxRetryDelay,
				multiplier:   2,
			},
		},
		{
			name: "shrinking multiplier and out of range jitter",
			cfg: Config{
				InitialRetryDelay: time.Second,
				MaxRetryDelay:     10 * time.Second,
				RetryMultiplier:   0.5,
				RetryJitter:       3,
			},
			expected: retryPolicy{
				initialDelay: time.Second,
				maxDelay:     10 * time.Second,
				multiplier:   config.DefaultRetryMultiplier,
			},
		},
		{
			name: "ceiling below the initial delay",
			cfg:  Config{InitialRetryDelay: 400 * time.Second, MaxRetryDelay: time.Second, RetryMultiplier: 2},
			expected: retryPolicy{
				initialDelay: 400 * time.Second,
				maxDelay:     400 * time.Second,
				multiplier:   2,
			},
		},
		{
			name: "valid curve is kept",
			cfg: Config{
				InitialRetryDelay: time.Second,
				MaxRetryDelay:     4 * time.Second,
				RetryMultiplier:   3,
				RetryJitter:       1,
			},
			expected: retryPolicy{
				initialDelay: time.Second,
				maxDelay:     4 * time.Second,
				multiplier:   3,
				jitter:       1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, newRetryPolicy(&tt.cfg))
		})
	}
}

func TestRetryPolicyCapDelay(t *testing.T) {
	p := defaultPolicy(false)
	p.jitter = 0.5
	b := p.newBackOff()

	for range 12 {
		assert.LessOrEqual(t, p.capDelay(b.NextBackOff()), config.DefaultMaxRetryDelay)
	}
	assert.Equal(t, config.DefaultMaxRetryDelay, p.capDelay(450*time.Second))
	assert.Equal(t, 5*time.Second, p.capDelay(5*time.Second))
}

func TestSleepContext(t *testing.T) {
	t.Run("returns after the delay", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, sleepContext(context.Background(), 5*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := sleepContext(ctx, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero delay only reports context state", func(t *testing.T) {
		assert.NoError(t, sleepContext(context.Background(), 0))
	})
}
