package defaults

import "time"

const (
	keepAliveInterval    = 3 * time.Second
	minKeepAliveInterval = 100 * time.Millisecond
)

// KeepAliveInterval returns the keep-alive cadence for a given timestamp skew.
//
// It is the protocol's 3s cadence, reduced to skew/3 when the skew is too small for at least
// two keep-alives to arrive in one window, and never below a small minimum.
func KeepAliveInterval(skew time.Duration) time.Duration {
	if skew <= 0 {
		return keepAliveInterval
	}
	interval := keepAliveInterval
	if interval > skew/3 {
		interval = skew / 3
	}
	if interval < minKeepAliveInterval {
		interval = minKeepAliveInterval
	}
	return interval
}
