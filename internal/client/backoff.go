package client

import "time"

// Backoff spaces out reconnect attempts. Connections that fail quickly double
// the delay up to Max; a connection that stayed up for at least Stable resets it.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Stable  time.Duration

	delay time.Duration
}

// DefaultBackoff starts at one second, caps at one minute and treats ten
// seconds of uptime as a healthy connection.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: time.Minute, Stable: 10 * time.Second}
}

// Next returns how long to wait before reconnecting after a connection that
// lasted lived. Zero means reconnect immediately.
func (b *Backoff) Next(lived time.Duration) time.Duration {
	if b.delay == 0 {
		b.delay = b.Initial
	}
	if lived >= b.Stable {
		b.delay = b.Initial
		return 0
	}
	b.delay = min(b.delay*2, b.Max)
	return b.delay
}
