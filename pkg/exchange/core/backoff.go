package core

import "time"

// baseTickerInterval is the timer driver's tick period (spec §4.7,
// §6): 75ms.
const baseTickerInterval = 75 * time.Millisecond

const maxDataTimeout = 30 * time.Second

// retransmitBackoff computes the DATA retransmit timeout schedule for
// a given heartbeat transmit interval, per spec §4.4. The formula is
// intentionally a step function, not exponential backoff: see
// SPEC_FULL.md / spec.md §9 design notes before changing it.
type retransmitBackoff struct {
	minTimeout time.Duration
	step       time.Duration
}

func newRetransmitBackoff(heartbeatInterval time.Duration) retransmitBackoff {
	minTo := baseTickerInterval
	if half := heartbeatInterval / 2; half > minTo {
		minTo = half
	}
	step := minTo
	if heartbeatInterval > step {
		step = heartbeatInterval
	}
	return retransmitBackoff{minTimeout: minTo, step: step}
}

// timeout returns the retransmit timeout for a DATA send of the given
// age: constant at minTimeout, then growing linearly in units of
// minTimeout per step, capped at maxDataTimeout.
func (b retransmitBackoff) timeout(age time.Duration) time.Duration {
	if age <= 0 {
		return b.minTimeout
	}
	units := int64(age / b.step)
	t := b.minTimeout * time.Duration(units)
	if t < b.minTimeout {
		t = b.minTimeout
	}
	if t > maxDataTimeout {
		t = maxDataTimeout
	}
	return t
}

// readyToCommitInterval is T_rtc: constant, equal to minTimeout (spec
// §4.4).
func (b retransmitBackoff) readyToCommitInterval() time.Duration {
	return b.minTimeout
}

// dueForRetransmit reports whether a DATA send of the given age
// should be retransmitted now: now - lastSend >= timeout(now -
// lastSend).
func (b retransmitBackoff) dueForRetransmit(age time.Duration) bool {
	return age >= b.timeout(age)
}

// orphanBlockTimeout computes T_block: the membership component's
// quantum interval times 5, rounded up to the next 5s (spec §4.4,
// §6).
func orphanBlockTimeout(quantumInterval time.Duration) time.Duration {
	const intervals = 5
	const roundTo = 5 * time.Second
	raw := quantumInterval * intervals
	if raw%roundTo == 0 {
		return raw
	}
	return raw + (roundTo - raw%roundTo)
}
