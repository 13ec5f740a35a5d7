// Package clockcheck runs a one-shot NTP offset check. A drifted machine
// clock breaks TLS to the upstream registry and makes sync timestamps lie,
// so the full diagnostic surfaces it.
package clockcheck

import (
	"time"

	"github.com/beevik/ntp"
)

const (
	DefaultPool      = "pool.ntp.org"
	DefaultThreshold = 500 * time.Millisecond
)

// Result of one offset check. Err being set means the pool was unreachable,
// which is a skip condition for the caller, not a failure.
type Result struct {
	Offset  time.Duration
	Healthy bool
	Err     error
}

var query = ntp.Query

// Check queries the pool once and compares the absolute clock offset
// against threshold.
func Check(pool string, threshold time.Duration) Result {
	if pool == "" {
		pool = DefaultPool
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	resp, err := query(pool)
	if err != nil {
		return Result{Err: err}
	}
	return evaluate(resp.ClockOffset, threshold)
}

func evaluate(offset, threshold time.Duration) Result {
	abs := offset
	if abs < 0 {
		abs = -abs
	}
	return Result{Offset: offset, Healthy: abs < threshold}
}
