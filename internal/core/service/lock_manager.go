package service

import (
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// DefaultLockDuration is how long an account stays locked once the failure
// threshold is reached. It does not escalate on repeat offenses.
const DefaultLockDuration = 30 * time.Second

// LockStatus is the result of evaluating a stored lock instant against now.
type LockStatus struct {
	Locked bool
	Until  time.Time
	// Remaining is Until - now; zero when unlocked.
	Remaining time.Duration
}

// RemainingSeconds rounds the remaining lock time up to whole seconds.
func (s LockStatus) RemainingSeconds() int {
	if !s.Locked || s.Remaining <= 0 {
		return 0
	}
	secs := s.Remaining / time.Second
	if s.Remaining%time.Second != 0 {
		secs++
	}
	return int(secs)
}

// LockManager adds time semantics to AttemptTracker.
type LockManager struct {
	tracker  AttemptTracker
	duration time.Duration
}

func NewLockManager(tracker AttemptTracker, duration time.Duration) *LockManager {
	if duration <= 0 {
		duration = DefaultLockDuration
	}
	return &LockManager{tracker: tracker, duration: duration}
}

// Check reports whether state is locked at now. A lock is active iff the lock
// instant is strictly after now.
func (m *LockManager) Check(state domain.LoginState, now time.Time) LockStatus {
	if state.LockUntil == nil || !state.LockUntil.After(now) {
		return LockStatus{}
	}
	until := *state.LockUntil
	return LockStatus{Locked: true, Until: until, Remaining: until.Sub(now)}
}

// Apply returns the state that follows an attempt outcome. While a lock is
// active the state is returned unchanged so the counter cannot grow inside a
// lock window.
func (m *LockManager) Apply(state domain.LoginState, success bool, now time.Time) domain.LoginState {
	if m.Check(state, now).Locked {
		return state
	}
	next, lock := m.tracker.Next(state.FailCount, success)
	out := domain.LoginState{FailCount: next}
	if lock {
		until := now.Add(m.duration)
		out.LockUntil = &until
	}
	return out
}

// Reset returns the cleared state used by administrative resets.
func (m *LockManager) Reset() domain.LoginState { return domain.LoginState{} }

// RemainingAttempts returns the failures state tolerates before locking.
func (m *LockManager) RemainingAttempts(state domain.LoginState) int {
	return m.tracker.Remaining(state.FailCount)
}

func (m *LockManager) Duration() time.Duration { return m.duration }
