package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

func TestAuthService_RegisterVerifyLoginScenario(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	acc, err := f.svc.Register(ctx, ports.RegisterInput{Email: "A@x.com ", Password: "pw", FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Email != "a@x.com" || acc.Status != domain.StatusPendingVerification || acc.VerifyToken == nil {
		t.Fatalf("unexpected registered account: %+v", acc)
	}
	if acc.FullName != "DoeJane" || acc.Role != domain.RoleUser || acc.Provider != domain.ProviderLocal {
		t.Fatalf("unexpected profile fields: %+v", acc)
	}
	if acc.PasswordHash == "pw" {
		t.Fatalf("expected password to be hashed")
	}
	mail, ok := f.notifier.last()
	if !ok || mail.Token != *acc.VerifyToken || mail.Email != "a@x.com" {
		t.Fatalf("expected verification mail with token, got %+v", mail)
	}

	if _, err := f.svc.Login(ctx, "a@x.com", "pw"); !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("login before verification: expected ErrNotVerified, got %v", err)
	}

	if _, err := f.svc.VerifyEmail(ctx, *acc.VerifyToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	res, err := f.svc.Login(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.Account.FailCount != 0 {
		t.Fatalf("unexpected login result: %+v", res)
	}
	subject, err := f.tokens.Validate(res.Token)
	if err != nil || subject != "a@x.com" {
		t.Fatalf("issued token invalid: subject=%q err=%v", subject, err)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	in := ports.RegisterInput{Email: "a@x.com", Password: "pw", FirstName: "J", LastName: "D"}

	if _, err := f.svc.Register(ctx, in); err != nil {
		t.Fatalf("Register: %v", err)
	}
	in.Email = "A@X.COM"
	if _, err := f.svc.Register(ctx, in); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestAuthService_RegisterSurvivesNotifierFailure(t *testing.T) {
	f := newAuthFixture()
	f.notifier.err = errors.New("queue full")

	if _, err := f.svc.Register(context.Background(), ports.RegisterInput{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	if _, err := f.repo.FindByEmail(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("expected account persisted: %v", err)
	}
}

func TestAuthService_LoginUnknownIdentity(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.svc.Login(context.Background(), "ghost@x.com", "pw"); !errors.Is(err, domain.ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestAuthService_LoginStoreFailureIsNotUnknownIdentity(t *testing.T) {
	f := newAuthFixture()
	boom := errors.New("connection refused")
	svc := NewAuthService(AuthDeps{
		Accounts: failingRepo{AccountRepository: f.repo, err: boom},
		Hasher:   NewBcryptHasher(4),
		Tokens:   f.tokens,
	}, zerolog.Nop())

	_, err := svc.Login(context.Background(), "a@x.com", "pw")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, domain.ErrUnknownIdentity) {
		t.Fatalf("store failure must not look like an unknown identity")
	}
}

func TestAuthService_LockoutScenario(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, "a@x.com", "wrong")
		var bad *domain.BadCredentialError
		if !errors.As(err, &bad) {
			t.Fatalf("attempt %d: expected BadCredentialError, got %v", i, err)
		}
		if bad.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, 5-i, bad.RemainingAttempts)
		}
	}

	_, err := f.svc.Login(ctx, "a@x.com", "wrong")
	var locked *domain.AccountLockedError
	if !errors.As(err, &locked) || locked.RemainingSeconds != 30 {
		t.Fatalf("5th attempt: expected AccountLocked{30}, got %v", err)
	}

	f.clock.Advance(10 * time.Second)
	_, err = f.svc.Login(ctx, "a@x.com", "pw")
	if !errors.As(err, &locked) || locked.RemainingSeconds != 20 {
		t.Fatalf("correct password during lock: expected AccountLocked{20}, got %v", err)
	}

	acc, _ := f.repo.FindByEmail(ctx, "a@x.com")
	if acc.FailCount != 5 {
		t.Fatalf("counter must not grow during lock, got %d", acc.FailCount)
	}

	f.clock.Advance(20 * time.Second)
	res, err := f.svc.Login(ctx, "a@x.com", "pw")
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if res.Account.FailCount != 0 || res.Account.LockUntil != nil {
		t.Fatalf("expected cleared login state, got %+v", res.Account.LoginState())
	}

	acc, _ = f.repo.FindByEmail(ctx, "a@x.com")
	if acc.FailCount != 0 || acc.LockUntil != nil {
		t.Fatalf("expected persisted reset, got %+v", acc.LoginState())
	}
	if f.observer.locks != 1 {
		t.Fatalf("expected one lock event, got %d", f.observer.locks)
	}
}

func TestAuthService_FailureAfterExpiryRelocks(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "a@x.com", "wrong")
	}
	f.clock.Advance(31 * time.Second)

	_, err := f.svc.Login(ctx, "a@x.com", "wrong")
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected failure past threshold to lock again, got %v", err)
	}
}

func TestAuthService_ConcurrentFailuresAreCounted(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Login(ctx, "a@x.com", "wrong")
		}()
	}
	wg.Wait()

	acc, _ := f.repo.FindByEmail(ctx, "a@x.com")
	if acc.FailCount != 4 {
		t.Fatalf("expected 4 recorded failures, got %d", acc.FailCount)
	}
}

func TestAuthService_SuspendedAccount(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	until := f.clock.Now().Add(24 * time.Hour)
	if err := f.repo.UpdateStatus(ctx, "a@x.com", domain.StatusSuspended, &until, "abuse", f.clock.Now()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	_, err := f.svc.Login(ctx, "a@x.com", "pw")
	var suspended *domain.AccountSuspendedError
	if !errors.As(err, &suspended) || suspended.Reason != "abuse" {
		t.Fatalf("expected AccountSuspendedError, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("suspension must also read as not verified")
	}

	f.clock.Advance(25 * time.Hour)
	if _, err := f.svc.Login(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("login after suspension end: %v", err)
	}
	acc, _ := f.repo.FindByEmail(ctx, "a@x.com")
	if acc.Status != domain.StatusActive || acc.SuspendedUntil != nil {
		t.Fatalf("expected suspension lifted, got %+v", acc)
	}
}

func TestAuthService_ResendVerification(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	acc, err := f.svc.Register(ctx, ports.RegisterInput{Email: "a@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	first := *acc.VerifyToken

	if err := f.svc.ResendVerification(ctx, "a@x.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	mail, _ := f.notifier.last()
	if mail.Token == first {
		t.Fatalf("expected a fresh token")
	}
	if _, err := f.svc.VerifyEmail(ctx, first); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("old token: expected ErrTokenNotFound, got %v", err)
	}
	if _, err := f.svc.VerifyEmail(ctx, mail.Token); err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "a@x.com"); !errors.Is(err, domain.ErrTokenAlreadyConsumed) {
		t.Fatalf("resend after verify: expected ErrTokenAlreadyConsumed, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "ghost@x.com"); !errors.Is(err, domain.ErrUnknownIdentity) {
		t.Fatalf("resend unknown: expected ErrUnknownIdentity, got %v", err)
	}
}

func TestAuthService_PasswordResetScenario(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "a@x.com", "wrong")
	}

	if err := f.svc.RequestPasswordReset(ctx, " A@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	mail, ok := f.notifier.last()
	if !ok || mail.Purpose != ports.PurposeResetPassword || mail.Email != "a@x.com" {
		t.Fatalf("expected reset mail, got %+v", mail)
	}
	if !mail.ExpiresAt.Equal(f.clock.Now().Add(30 * time.Minute)) {
		t.Fatalf("unexpected reset expiry %v", mail.ExpiresAt)
	}

	if err := f.svc.VerifyResetToken(ctx, mail.Token); err != nil {
		t.Fatalf("VerifyResetToken: %v", err)
	}
	if err := f.svc.ResetPassword(ctx, mail.Token, "new-pw"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// The reset lifts the lockout immediately.
	if _, err := f.svc.Login(ctx, "a@x.com", "new-pw"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	var bad *domain.BadCredentialError
	if _, err := f.svc.Login(ctx, "a@x.com", "pw"); !errors.As(err, &bad) {
		t.Fatalf("old password: expected BadCredentialError, got %v", err)
	}

	if err := f.svc.ResetPassword(ctx, mail.Token, "other-pw"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("reused token: expected ErrTokenNotFound, got %v", err)
	}
	if err := f.svc.VerifyResetToken(ctx, mail.Token); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("reused token check: expected ErrTokenNotFound, got %v", err)
	}
	if len(f.observer.resets) != 2 || f.observer.resets[0] != "reset" || f.observer.resets[1] != "not_found" {
		t.Fatalf("unexpected reset outcomes %v", f.observer.resets)
	}
}

func TestAuthService_PasswordResetExpired(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	if err := f.svc.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	mail, _ := f.notifier.last()

	f.clock.Advance(31 * time.Minute)
	if err := f.svc.VerifyResetToken(ctx, mail.Token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("VerifyResetToken: expected ErrTokenExpired, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, mail.Token, "new-pw"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("ResetPassword: expected ErrTokenExpired, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("old password must still work: %v", err)
	}
}

func TestAuthService_PasswordResetUnknownToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	for _, tok := range []string{"", "nope"} {
		if err := f.svc.ResetPassword(ctx, tok, "new-pw"); !errors.Is(err, domain.ErrTokenNotFound) {
			t.Fatalf("ResetPassword(%q): expected ErrTokenNotFound, got %v", tok, err)
		}
	}
}

func TestAuthService_PasswordResetNewRequestReplacesToken(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	_ = f.svc.RequestPasswordReset(ctx, "a@x.com")
	first, _ := f.notifier.last()
	_ = f.svc.RequestPasswordReset(ctx, "a@x.com")
	second, _ := f.notifier.last()

	if err := f.svc.ResetPassword(ctx, first.Token, "new-pw"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("replaced token: expected ErrTokenNotFound, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, second.Token, "new-pw"); err != nil {
		t.Fatalf("latest token: %v", err)
	}
}

func TestAuthService_PasswordResetRequestIsSilent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "pending@x.com", Password: "pw"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sent := len(f.notifier.mails)

	for _, email := range []string{"ghost@x.com", "pending@x.com"} {
		if err := f.svc.RequestPasswordReset(ctx, email); err != nil {
			t.Fatalf("RequestPasswordReset(%q): %v", email, err)
		}
	}
	if len(f.notifier.mails) != sent {
		t.Fatalf("expected no reset mail for unknown or pending accounts")
	}
}

func TestAuthService_IsEmailAvailable(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	if ok, err := f.svc.IsEmailAvailable(ctx, "A@x.com"); err != nil || ok {
		t.Fatalf("expected taken, got ok=%v err=%v", ok, err)
	}
	if ok, err := f.svc.IsEmailAvailable(ctx, "b@x.com"); err != nil || !ok {
		t.Fatalf("expected available, got ok=%v err=%v", ok, err)
	}
}

func TestAuthService_Me(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.activeAccount("a@x.com", "pw")

	acc, err := f.svc.Me(ctx, domain.Identity{Email: "a@x.com"})
	if err != nil || acc.Email != "a@x.com" {
		t.Fatalf("Me: acc=%+v err=%v", acc, err)
	}
	if _, err := f.svc.Me(ctx, domain.Identity{}); !errors.Is(err, domain.ErrUnknownIdentity) {
		t.Fatalf("anonymous Me: expected ErrUnknownIdentity, got %v", err)
	}
}
