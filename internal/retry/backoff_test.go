package retry_test

import (
	"testing"

	"github.com/notifyhub/dispatch/internal/retry"
)

func defaultBackoff() retry.Backoff {
	return retry.Backoff{
		BaseDelayMillis: 1000,
		ExponentialBase: 2.0,
		MaxDelayMillis:  300_000,
	}
}

func TestBackoff_DelayWithinJitterBounds(t *testing.T) {
	b := defaultBackoff()

	// attempt n has a deterministic floor of base * 2^n and at most
	// 10% jitter on top.
	for attempts, floor := range map[int]int64{
		0: 1000,
		1: 2000,
		2: 4000,
		3: 8000,
	} {
		for i := 0; i < 50; i++ {
			d := b.DelayMillis(attempts)
			if d < floor {
				t.Fatalf("attempt %d: delay %d below floor %d", attempts, d, floor)
			}
			max := floor + floor/10
			if d > max {
				t.Fatalf("attempt %d: delay %d above jitter ceiling %d", attempts, d, max)
			}
		}
	}
}

func TestBackoff_CapsAtMaxDelay(t *testing.T) {
	b := defaultBackoff()

	// 2^9 * 1000 = 512000 > 300000, so the cap applies.
	for i := 0; i < 50; i++ {
		d := b.DelayMillis(9)
		if d < 300_000 {
			t.Fatalf("capped delay %d below max", d)
		}
		if d > 330_000 {
			t.Fatalf("capped delay %d exceeds max plus jitter", d)
		}
	}
}

func TestBackoff_CapSurvivesHugeAttemptCounts(t *testing.T) {
	b := defaultBackoff()
	d := b.DelayMillis(10_000)
	if d < 300_000 || d > 330_000 {
		t.Fatalf("overflow-range delay %d outside capped window", d)
	}
}

func TestBackoff_DeterministicFloorIsMonotonic(t *testing.T) {
	b := retry.Backoff{BaseDelayMillis: 500, ExponentialBase: 3.0, MaxDelayMillis: 60_000}

	// Stops before the cap flattens the curve: 500 * 3^5 > 60000.
	prevFloor := int64(0)
	for attempts := 0; attempts < 5; attempts++ {
		// The minimum over many samples approaches the jitter-free floor.
		min := b.DelayMillis(attempts)
		for i := 0; i < 30; i++ {
			if d := b.DelayMillis(attempts); d < min {
				min = d
			}
		}
		if min < prevFloor {
			t.Fatalf("attempt %d floor %d decreased below %d", attempts, min, prevFloor)
		}
		prevFloor = min
	}
}
