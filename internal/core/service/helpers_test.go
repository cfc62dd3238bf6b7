package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
	"github.com/stockpulse/authcore/internal/infrastructure/db/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	mails []ports.VerificationMail
	err   error
}

func (n *recordingNotifier) SendVerification(_ context.Context, mail ports.VerificationMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.mails = append(n.mails, mail)
	return nil
}

func (n *recordingNotifier) last() (ports.VerificationMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.mails) == 0 {
		return ports.VerificationMail{}, false
	}
	return n.mails[len(n.mails)-1], true
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[LoginOutcome]int
	locks    int
	resets   []string
}

func (o *countingObserver) LoginAttempt(outcome LoginOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[LoginOutcome]int)
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) AccountLocked() {
	o.mu.Lock()
	o.locks++
	o.mu.Unlock()
}

func (o *countingObserver) Verification(string) {}

func (o *countingObserver) PasswordReset(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets = append(o.resets, outcome)
}

// failingRepo wraps a repository and fails lookups with a fixed error.
type failingRepo struct {
	ports.AccountRepository
	err error
}

func (r failingRepo) FindByEmail(context.Context, string) (*domain.Account, error) {
	return nil, r.err
}

type authFixture struct {
	svc      *AuthService
	repo     *memory.AccountRepository
	clock    *fakeClock
	notifier *recordingNotifier
	observer *countingObserver
	tokens   *TokenService
}

func newAuthFixture() *authFixture {
	clock := newFakeClock()
	repo := memory.NewAccountRepository()
	tokens, err := NewTokenService(TokenConfig{Secret: "test-secret", Issuer: "authcore-test", TTL: time.Hour, Clock: clock.Now})
	if err != nil {
		panic(err)
	}
	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	svc := NewAuthService(AuthDeps{
		Accounts:     repo,
		Hasher:       NewBcryptHasher(bcrypt.MinCost),
		Tokens:       tokens,
		Locks:        NewLockManager(NewAttemptTracker(5), 30*time.Second),
		Verification: NewVerificationManager(repo, WithVerificationClock(clock.Now)),
		Notifier:     notifier,
		Observer:     observer,
		Clock:        clock.Now,
	}, zerolog.Nop())
	return &authFixture{svc: svc, repo: repo, clock: clock, notifier: notifier, observer: observer, tokens: tokens}
}

// activeAccount registers and verifies an account.
func (f *authFixture) activeAccount(email, password string) {
	ctx := context.Background()
	acc, err := f.svc.Register(ctx, ports.RegisterInput{Email: email, Password: password, FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		panic(err)
	}
	if _, err := f.svc.VerifyEmail(ctx, *acc.VerifyToken); err != nil {
		panic(err)
	}
}
