// Package pacing computes the human-plausible delays that separate every
// externally observable action.
//
// Delays computed here are floors: callers sleep for the full duration and
// never shorten it on cancellation.
package pacing

import (
	"math"
	"math/rand/v2"
	"time"
)

// JitterFraction is the additive jitter applied on top of a backoff base.
const JitterFraction = 0.2

// BackoffConfig bounds the retry delay.
type BackoffConfig struct {
	Min time.Duration
	Max time.Duration
}

// Backoff returns the delay before retry number attempt (1-based) for a
// uniform draw u in [0,1).
//
// base = min(Min * 2^(attempt-1), Max); delay = base + base*0.2*u, clamped to [Min, Max].
func Backoff(attempt int, cfg BackoffConfig, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}

	base := float64(cfg.Min) * math.Pow(2, float64(attempt-1))
	if base > float64(cfg.Max) {
		base = float64(cfg.Max)
	}

	delay := base + base*JitterFraction*u
	if delay < float64(cfg.Min) {
		delay = float64(cfg.Min)
	}
	if delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	return time.Duration(delay)
}

// Uniform returns a delay drawn uniformly from [lo, hi] for a draw u in [0,1).
func Uniform(lo, hi time.Duration, u float64) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(float64(hi-lo)*u)
}

// Sleeper blocks for a pacing delay.
type Sleeper func(d time.Duration)

// Rand returns a fresh uniform draw in [0,1).
type Rand func() float64

// Defaults used when a component is constructed without hooks.
var (
	DefaultSleeper Sleeper = time.Sleep
	DefaultRand    Rand    = rand.Float64
)
