package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

const accountColumns = `email, password_hash, first_name, last_name, full_name, role, provider,
	account_status, fail_count, lock_until, verification_token, token_expire_at,
	reset_token, reset_token_expire_at, suspended_until, suspend_reason, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                                           domain.Account
		role, provider, status                      string
		lockUntil, tokenExpire, resetExpire, suspUn sql.NullTime
		token, resetToken                           sql.NullString
	)
	err := row.Scan(
		&a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.FullName, &role, &provider,
		&status, &a.FailCount, &lockUntil, &token, &tokenExpire,
		&resetToken, &resetExpire, &suspUn, &a.SuspendReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Role = domain.Role(role)
	a.Provider = domain.Provider(provider)
	a.Status = domain.AccountStatus(status)
	a.LockUntil = timePtr(lockUntil)
	a.TokenExpireAt = timePtr(tokenExpire)
	a.ResetExpireAt = timePtr(resetExpire)
	a.SuspendedUntil = timePtr(suspUn)
	a.VerifyToken = stringPtr(token)
	a.ResetToken = stringPtr(resetToken)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *AccountRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE verification_token = $1`, token)
	return scanAccount(row)
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		a.Email, a.PasswordHash, a.FirstName, a.LastName, a.FullName, string(a.Role), string(a.Provider),
		string(a.Status), a.FailCount, nullTime(a.LockUntil), nullString(a.VerifyToken), nullTime(a.TokenExpireAt),
		nullString(a.ResetToken), nullTime(a.ResetExpireAt), nullTime(a.SuspendedUntil), a.SuspendReason,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateLoginState locks the account row for the duration of the
// read-modify-write so concurrent attempts serialize.
func (r *AccountRepository) UpdateLoginState(ctx context.Context, email string, mutate ports.LoginStateMutation) (domain.LoginState, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LoginState{}, fmt.Errorf("begin login state tx: %w", err)
	}
	defer tx.Rollback()

	var (
		failCount int
		lockUntil sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT fail_count, lock_until
		FROM accounts
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&failCount, &lockUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LoginState{}, domain.ErrAccountNotFound
		}
		return domain.LoginState{}, fmt.Errorf("lock account row: %w", err)
	}

	next := mutate(domain.LoginState{FailCount: failCount, LockUntil: timePtr(lockUntil)})

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET fail_count = $2, lock_until = $3, updated_at = $4
		WHERE email = $1
	`, email, next.FailCount, nullTime(next.LockUntil), time.Now().UTC())
	if err != nil {
		return domain.LoginState{}, fmt.Errorf("update login state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.LoginState{}, fmt.Errorf("commit login state tx: %w", err)
	}
	return next, nil
}

func (r *AccountRepository) Activate(ctx context.Context, email, token string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET account_status = $4, verification_token = NULL, token_expire_at = NULL, updated_at = $5
		WHERE email = $1 AND verification_token = $2 AND account_status = $3
	`, email, token, string(domain.StatusPendingVerification), string(domain.StatusActive), now.UTC())
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTokenAlreadyConsumed
	}
	return nil
}

func (r *AccountRepository) ReplaceVerificationToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET verification_token = $2, token_expire_at = $3, updated_at = $4
		WHERE email = $1 AND account_status = $5
	`, email, token.Value, token.ExpiresAt.UTC(), now.UTC(), string(domain.StatusPendingVerification))
	if err != nil {
		return fmt.Errorf("replace verification token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_token = $1`, token)
	return scanAccount(row)
}

func (r *AccountRepository) SetResetToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET reset_token = $2, reset_token_expire_at = $3, updated_at = $4
		WHERE email = $1
	`, email, token.Value, token.ExpiresAt.UTC(), now.UTC())
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) ResetPassword(ctx context.Context, email, token, passwordHash string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $3, reset_token = NULL, reset_token_expire_at = NULL,
		    fail_count = 0, lock_until = NULL, updated_at = $4
		WHERE email = $1 AND reset_token = $2
	`, email, token, passwordHash, now.UTC())
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTokenAlreadyConsumed
	}
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, email string, status domain.AccountStatus, suspendedUntil *time.Time, reason string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET account_status = $2, suspended_until = $3, suspend_reason = $4, updated_at = $5
		WHERE email = $1
	`, email, string(status), nullTime(suspendedUntil), reason, now.UTC())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, email`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}
