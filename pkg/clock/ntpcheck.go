package clock

import (
	"context"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultNTPPool      = "pool.ntp.org"
	defaultNTPInterval  = 5 * time.Minute
	defaultNTPThreshold = 500 * time.Millisecond
)

// DriftPhase classifies the last NTP query against defaultNTPThreshold.
type DriftPhase uint8

const (
	DriftUnchecked DriftPhase = iota
	DriftHealthy
	DriftExcessive
	DriftError
)

func (p DriftPhase) String() string {
	switch p {
	case DriftHealthy:
		return "healthy"
	case DriftExcessive:
		return "excessive"
	case DriftError:
		return "error"
	default:
		return "unchecked"
	}
}

// DriftStatus is a point-in-time read of the host's drift against an NTP
// pool. It is diagnostic only: nothing in the replica's election or
// replication path consults it, it exists so operators can tell whether a
// replica's Christian's-algorithm offsets are plausible or symptomatic of
// a badly skewed host clock.
type DriftStatus struct {
	Offset    time.Duration
	Phase     DriftPhase
	Error     string
	CheckedAt time.Time
}

// NTPChecker periodically queries an NTP pool and records the observed
// clock offset. It is unrelated to the replica's own Lamport/Christian's
// clocks; it is a standalone health signal for operators.
type NTPChecker struct {
	mu        sync.RWMutex
	status    DriftStatus
	pool      string
	interval  time.Duration
	threshold time.Duration

	// queryFunc is overridden in tests to avoid a real network query.
	queryFunc func(pool string) (*ntp.Response, error)
}

// NewNTPChecker builds a checker with the default pool, interval, and
// drift threshold.
func NewNTPChecker() *NTPChecker {
	return &NTPChecker{
		pool:      defaultNTPPool,
		interval:  defaultNTPInterval,
		threshold: defaultNTPThreshold,
		status:    DriftStatus{Phase: DriftUnchecked},
		queryFunc: ntp.Query,
	}
}

// Run queries immediately and then on every interval tick until ctx is
// canceled.
func (c *NTPChecker) Run(ctx context.Context) {
	c.check()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check()
		}
	}
}

func (c *NTPChecker) check() {
	resp, err := c.queryFunc(c.pool)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if err != nil {
		c.status = DriftStatus{Error: err.Error(), Phase: DriftError, CheckedAt: now}
		return
	}

	phase := DriftExcessive
	if resp.ClockOffset.Abs() < c.threshold {
		phase = DriftHealthy
	}
	c.status = DriftStatus{Offset: resp.ClockOffset, Phase: phase, CheckedAt: now}
}

// Status returns the most recent drift reading.
func (c *NTPChecker) Status() DriftStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
