package resilience

import "time"

// Config tunes the shared retry and breaker policy. Zero values take
// the defaults, so callers only set what they need (tests disable the
// breaker, the queue shortens the open timeout).
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig is sized for the pipeline's HTTP upstreams: three
// attempts stay under the façade's request deadline even at the capped
// backoff, and the 30s open window matches how long the extractor and
// model services typically take to come back.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return c
}
