package replica

import "time"

// registrationBackoff paces retry attempts against the Registry when
// rank assignment keeps failing, so a Registry outage doesn't turn
// every heartbeat tick into a fresh dial attempt.
type registrationBackoff struct {
	base   time.Duration
	factor float32
	cap    time.Duration

	duration time.Duration
	nextTry  time.Time
}

func newRegistrationBackoff(base time.Duration, factor float32, cap time.Duration) *registrationBackoff {
	return &registrationBackoff{base: base, factor: factor, cap: cap}
}

// Failed records a failed attempt and pushes nextTry out.
func (b *registrationBackoff) Failed() {
	b.duration = b.base + time.Duration(float32(b.duration)*b.factor)
	if b.duration > b.cap {
		b.duration = b.cap
	}
	b.nextTry = time.Now().Add(b.duration)
}

// Ready reports whether enough time has passed since the last failure
// to justify another attempt. A backoff that has never failed is
// always ready.
func (b *registrationBackoff) Ready() bool {
	return b.nextTry.IsZero() || time.Now().After(b.nextTry)
}

// Reset clears the backoff after a successful attempt.
func (b *registrationBackoff) Reset() {
	b.duration = 0
	b.nextTry = time.Time{}
}
