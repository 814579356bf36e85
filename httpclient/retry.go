package httpclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/gaborage/go-tdclient/config"
)

// outcome is the classification of one attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetry:
		return "retry"
	default:
		return "fatal"
	}
}

// retryPolicy decides which attempts are retried and how long to wait.
type retryPolicy struct {
	retryPost    bool
	budget       time.Duration
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

// newRetryPolicy falls back to the default curve for any parameter that would
// stop the cumulative delay from growing.
func newRetryPolicy(cfg *Config) retryPolicy {
	p := retryPolicy{
		retryPost:    cfg.RetryPostRequests,
		budget:       cfg.MaxCumulativeRetryDelay,
		initialDelay: cfg.InitialRetryDelay,
		maxDelay:     cfg.MaxRetryDelay,
		multiplier:   cfg.RetryMultiplier,
		jitter:       cfg.RetryJitter,
	}
	if p.initialDelay <= 0 {
		p.initialDelay = config.DefaultInitialRetryDelay
	}
	if p.maxDelay < p.initialDelay {
		p.maxDelay = max(config.DefaultMaxRetryDelay, p.initialDelay)
	}
	if p.multiplier < 1 {
		p.multiplier = config.DefaultRetryMultiplier
	}
	if p.jitter < 0 || p.jitter > 1 {
		p.jitter = 0
	}
	return p
}

// eligible reports whether failures of verb may be retried at all.
func (p retryPolicy) eligible(verb Verb) bool {
	return verb != VerbCreateForm || p.retryPost
}

// classify maps an attempt result onto SUCCESS, RETRY or FATAL. A transport
// fault counts as a retryable server error.
func (p retryPolicy) classify(verb Verb, status int, fault error) outcome {
	if fault == nil && IsSuccessStatus(status) {
		return outcomeSuccess
	}
	if (fault != nil || IsRetryableStatus(status)) && p.eligible(verb) {
		return outcomeRetry
	}
	return outcomeFatal
}

// exhausted reports whether the sleep already consumed leaves no budget.
// The check runs before sleeping, so the final sum of sleeps meets or
// exceeds the budget when a request fails for good.
func (p retryPolicy) exhausted(cumulative time.Duration) bool {
	return cumulative >= p.budget
}

// newBackOff returns a fresh schedule owned by a single logical request.
func (p retryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialDelay
	b.MaxInterval = p.maxDelay
	b.Multiplier = p.multiplier
	b.RandomizationFactor = p.jitter
	b.Reset()
	return b
}

// capDelay keeps a jittered delay within the single-sleep ceiling.
func (p retryPolicy) capDelay(d time.Duration) time.Duration {
	return min(d, p.maxDelay)
}

// sleepContext waits for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
