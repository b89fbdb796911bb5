package retry

import (
	"math"
	"math/rand"
)

// Backoff computes retry delays: exponential in the number of
// attempts already made, capped, with up to 10% positive jitter so
// synchronized failures do not retry in lockstep.
type Backoff struct {
	BaseDelayMillis int64
	ExponentialBase float64
	MaxDelayMillis  int64
}

// DelayMillis returns the delay before the next attempt, given the
// number of attempts already made.
func (b Backoff) DelayMillis(attempts int) int64 {
	capped := b.cappedMillis(attempts)
	jitter := rand.Float64() * capped * 0.1
	return int64(math.Floor(capped + jitter))
}

// cappedMillis is the deterministic (jitter-free) portion of the
// delay, monotonically non-decreasing in attempts.
func (b Backoff) cappedMillis(attempts int) float64 {
	raw := float64(b.BaseDelayMillis) * math.Pow(b.ExponentialBase, float64(attempts))
	max := float64(b.MaxDelayMillis)
	if raw > max || math.IsInf(raw, 1) {
		return max
	}
	return raw
}
