package clock

import "time"

// SyncResult is the outcome of one Christian's-algorithm round trip against
// the coordinator, per spec.md §4.7 and the worked example in §8 scenario
// S6.
type SyncResult struct {
	// EstimatedCoordinatorTime is the coordinator's time projected forward
	// by half the observed round trip.
	EstimatedCoordinatorTime time.Duration
	// Offset is EstimatedCoordinatorTime minus the requester's own clock
	// reading at reply time (t1). Applying it to the local wall clock
	// would cancel the estimated skew.
	Offset time.Duration
	// RoundTrip is the full t1-t0 duration observed by the requester.
	RoundTrip time.Duration
}

// EstimateFromRoundTrip implements the Christian's algorithm correction:
// given the requester's send time t0 and receive time t1 (both on the
// requester's own monotonic clock) and the coordinator's reported time
// coordinatorTime, it estimates what the coordinator's clock reads "now"
// and the offset against the requester's own t1 reading.
//
// Per the open question in spec.md §9, this function only computes the
// estimate and offset; the replica records the offset rather than
// stepping its own clock (see DESIGN.md).
func EstimateFromRoundTrip(t0, t1, coordinatorTime time.Duration) SyncResult {
	roundTrip := t1 - t0
	estimate := coordinatorTime + roundTrip/2
	return SyncResult{
		EstimatedCoordinatorTime: estimate,
		Offset:                   estimate - t1,
		RoundTrip:                roundTrip,
	}
}
