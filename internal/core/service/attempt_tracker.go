package service

// DefaultLockThreshold is the number of consecutive failures that locks an
// account.
const DefaultLockThreshold = 5

// AttemptTracker maps a credential-check outcome onto the next failure
// counter. It holds no state and performs no I/O.
type AttemptTracker struct {
	threshold int
}

func NewAttemptTracker(threshold int) AttemptTracker {
	if threshold <= 0 {
		threshold = DefaultLockThreshold
	}
	return AttemptTracker{threshold: threshold}
}

// Threshold returns the failure count at which an account locks.
func (t AttemptTracker) Threshold() int { return t.threshold }

// Next returns the counter after an attempt and whether the account should
// lock now.
func (t AttemptTracker) Next(current int, success bool) (next int, lock bool) {
	if success {
		return 0, false
	}
	if current < 0 {
		current = 0
	}
	next = current + 1
	return next, next >= t.threshold
}

// Remaining returns how many more failures the account tolerates before
// locking.
func (t AttemptTracker) Remaining(current int) int {
	if r := t.threshold - current; r > 0 {
		return r
	}
	return 0
}
