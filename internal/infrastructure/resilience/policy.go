package resilience

import (
	"log/slog"
	"math"
	"time"
)

// RetryPolicy bounds the attempts of one call and the exponential backoff
// between them.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the circuit breaker kept per operation name.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// Observer receives retry and breaker events, e.g. to export metrics.
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation, state string)
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy

	// Logger defaults to slog.Default(); Observer may be nil.
	Logger   *slog.Logger
	Observer Observer
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	c.Retry = c.Retry.normalize(def.Retry)
	c.Breaker = c.Breaker.normalize(def.Breaker)
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.InitialBackoff)
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// backoff is the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	if wait >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}

func (p BreakerPolicy) normalize(def BreakerPolicy) BreakerPolicy {
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = def.OpenTimeout
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}
