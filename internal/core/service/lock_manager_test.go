package service

import (
	"testing"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
)

func TestLockManager_Check(t *testing.T) {
	m := NewLockManager(NewAttemptTracker(5), 30*time.Second)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	tests := []struct {
		name       string
		lockUntil  *time.Time
		wantLocked bool
		wantSecs   int
	}{
		{"no lock", nil, false, 0},
		{"expired lock", at(-time.Second), false, 0},
		{"lock ends exactly now", at(0), false, 0},
		{"full window", at(30 * time.Second), true, 30},
		{"partial second rounds up", at(1500 * time.Millisecond), true, 2},
		{"sub-second remainder", at(time.Millisecond), true, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := m.Check(domain.LoginState{FailCount: 5, LockUntil: tc.lockUntil}, now)
			if st.Locked != tc.wantLocked {
				t.Fatalf("Locked = %v, want %v", st.Locked, tc.wantLocked)
			}
			if got := st.RemainingSeconds(); got != tc.wantSecs {
				t.Fatalf("RemainingSeconds = %d, want %d", got, tc.wantSecs)
			}
		})
	}
}

func TestLockManager_ApplyTripsLock(t *testing.T) {
	m := NewLockManager(NewAttemptTracker(5), 30*time.Second)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	next := m.Apply(domain.LoginState{FailCount: 4}, false, now)
	if next.FailCount != 5 {
		t.Fatalf("expected counter 5, got %d", next.FailCount)
	}
	if next.LockUntil == nil || !next.LockUntil.Equal(now.Add(30*time.Second)) {
		t.Fatalf("expected lock until %v, got %v", now.Add(30*time.Second), next.LockUntil)
	}
}

func TestLockManager_ApplyIsNoopWhileLocked(t *testing.T) {
	m := NewLockManager(NewAttemptTracker(5), 30*time.Second)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Second)
	locked := domain.LoginState{FailCount: 5, LockUntil: &until}

	if got := m.Apply(locked, false, now); !got.Equal(locked) {
		t.Fatalf("failure during lock changed state: %+v", got)
	}
	if got := m.Apply(locked, true, now); !got.Equal(locked) {
		t.Fatalf("success during lock changed state: %+v", got)
	}
}

func TestLockManager_SuccessClears(t *testing.T) {
	m := NewLockManager(NewAttemptTracker(5), 30*time.Second)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)

	got := m.Apply(domain.LoginState{FailCount: 5, LockUntil: &expired}, true, now)
	if got.FailCount != 0 || got.LockUntil != nil {
		t.Fatalf("expected cleared state, got %+v", got)
	}
}

func TestLockManager_CounterSurvivesExpiry(t *testing.T) {
	m := NewLockManager(NewAttemptTracker(5), 30*time.Second)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Second)

	got := m.Apply(domain.LoginState{FailCount: 5, LockUntil: &expired}, false, now)
	if got.FailCount != 6 {
		t.Fatalf("expected counter to continue at 6, got %d", got.FailCount)
	}
	if got.LockUntil == nil {
		t.Fatalf("expected failure past threshold to lock again")
	}
}
