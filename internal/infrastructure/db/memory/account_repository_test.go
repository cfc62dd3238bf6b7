package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/authcore/internal/core/domain"
)

func pendingAccount(email, token string, expires time.Time) *domain.Account {
	return &domain.Account{
		Email:         email,
		Status:        domain.StatusPendingVerification,
		VerifyToken:   &token,
		TokenExpireAt: &expires,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestAccountRepository_CreateDuplicate(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "a@x.com"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Email: "a@x.com"}), domain.ErrDuplicateIdentity)
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "a@x.com", FailCount: 1}))

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	got.FailCount = 99

	again, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, again.FailCount)
}

func TestAccountRepository_UpdateLoginStateIsAtomic(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "a@x.com"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateLoginState(ctx, "a@x.com", func(s domain.LoginState) domain.LoginState {
				s.FailCount++
				return s
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 50, got.FailCount)
}

func TestAccountRepository_ActivateOnce(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, pendingAccount("a@x.com", "tok", now.Add(time.Minute))))

	require.NoError(t, repo.Activate(ctx, "a@x.com", "tok", now))
	assert.ErrorIs(t, repo.Activate(ctx, "a@x.com", "tok", now), domain.ErrTokenAlreadyConsumed)

	_, err := repo.FindByVerificationToken(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Nil(t, got.VerifyToken)
	assert.Nil(t, got.TokenExpireAt)
}

func TestAccountRepository_ResetPasswordOnce(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	lock := now.Add(30 * time.Second)
	require.NoError(t, repo.Create(ctx, &domain.Account{
		Email: "a@x.com", PasswordHash: "old", Status: domain.StatusActive, FailCount: 5, LockUntil: &lock,
	}))

	assert.ErrorIs(t, repo.SetResetToken(ctx, "b@x.com", domain.VerificationToken{Value: "rt"}, now), domain.ErrAccountNotFound)
	require.NoError(t, repo.SetResetToken(ctx, "a@x.com", domain.VerificationToken{Value: "rt", ExpiresAt: now.Add(time.Minute)}, now))

	found, err := repo.FindByResetToken(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", found.Email)

	assert.ErrorIs(t, repo.ResetPassword(ctx, "a@x.com", "other", "new", now), domain.ErrTokenAlreadyConsumed)
	require.NoError(t, repo.ResetPassword(ctx, "a@x.com", "rt", "new", now))
	assert.ErrorIs(t, repo.ResetPassword(ctx, "a@x.com", "rt", "newer", now), domain.ErrTokenAlreadyConsumed)

	_, err = repo.FindByResetToken(ctx, "rt")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Zero(t, got.FailCount)
	assert.Nil(t, got.LockUntil)
	assert.Nil(t, got.ResetToken)
	assert.Nil(t, got.ResetExpireAt)
}

func TestAccountRepository_ListNewestFirst(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "old@x.com", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "new@x.com", CreatedAt: base.Add(time.Hour)}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new@x.com", list[0].Email)
}

func TestAdminLogRepository_ListRecent(t *testing.T) {
	repo := NewAdminLogRepository()
	ctx := context.Background()
	for _, target := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Insert(ctx, &domain.AdminLogEntry{Target: target}))
	}

	entries, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Target)
	assert.Equal(t, "b", entries[1].Target)
}
