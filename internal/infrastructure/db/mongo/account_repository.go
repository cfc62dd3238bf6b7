package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

const (
	accountCollection = "accounts"
	// maxCASRetries bounds the optimistic loop in UpdateLoginState.
	maxCASRetries = 8
)

var errCASExhausted = errors.New("login state update contended")

type AccountRepository struct {
	coll *mongo.Collection
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountCollection)}
}

// accountDoc is the stored layout. login_version is bumped on every login
// state write and guards the compare-and-swap.
type accountDoc struct {
	Email          string     `bson:"email"`
	PasswordHash   string     `bson:"password_hash"`
	FirstName      string     `bson:"first_name"`
	LastName       string     `bson:"last_name"`
	FullName       string     `bson:"full_name"`
	Role           string     `bson:"role"`
	Provider       string     `bson:"provider"`
	Status         string     `bson:"account_status"`
	FailCount      int        `bson:"fail_count"`
	LockUntil      *time.Time `bson:"lock_until"`
	LoginVersion   int64      `bson:"login_version"`
	VerifyToken    *string    `bson:"verification_token,omitempty"`
	TokenExpireAt  *time.Time `bson:"token_expire_at"`
	ResetToken     *string    `bson:"reset_token,omitempty"`
	ResetExpireAt  *time.Time `bson:"reset_token_expire_at,omitempty"`
	SuspendedUntil *time.Time `bson:"suspended_until"`
	SuspendReason  string     `bson:"suspend_reason,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDoc(a *domain.Account) accountDoc {
	return accountDoc{
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		FullName:       a.FullName,
		Role:           string(a.Role),
		Provider:       string(a.Provider),
		Status:         string(a.Status),
		FailCount:      a.FailCount,
		LockUntil:      utcPtr(a.LockUntil),
		VerifyToken:    a.VerifyToken,
		TokenExpireAt:  utcPtr(a.TokenExpireAt),
		ResetToken:     a.ResetToken,
		ResetExpireAt:  utcPtr(a.ResetExpireAt),
		SuspendedUntil: utcPtr(a.SuspendedUntil),
		SuspendReason:  a.SuspendReason,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
}

func (d accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		FullName:       d.FullName,
		Role:           domain.Role(d.Role),
		Provider:       domain.Provider(d.Provider),
		Status:         domain.AccountStatus(d.Status),
		FailCount:      d.FailCount,
		LockUntil:      utcPtr(d.LockUntil),
		VerifyToken:    d.VerifyToken,
		TokenExpireAt:  utcPtr(d.TokenExpireAt),
		ResetToken:     d.ResetToken,
		ResetExpireAt:  utcPtr(d.ResetExpireAt),
		SuspendedUntil: utcPtr(d.SuspendedUntil),
		SuspendReason:  d.SuspendReason,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*accountDoc, error) {
	var doc accountDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &doc, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	doc, err := r.findOne(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	doc, err := r.findOne(ctx, bson.M{"verification_token": token})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if _, err := r.coll.InsertOne(ctx, toDoc(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateLoginState reads the current state, applies mutate and writes it back
// only if no other writer bumped login_version in between. On conflict it
// re-reads and tries again.
func (r *AccountRepository) UpdateLoginState(ctx context.Context, email string, mutate ports.LoginStateMutation) (domain.LoginState, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		doc, err := r.findOne(ctx, bson.M{"email": email})
		if err != nil {
			return domain.LoginState{}, err
		}

		current := domain.LoginState{FailCount: doc.FailCount, LockUntil: utcPtr(doc.LockUntil)}
		next := mutate(current)

		filter := loginVersionFilter(email, doc.LoginVersion)
		update := bson.M{
			"$set": bson.M{
				"fail_count": next.FailCount,
				"lock_until": utcPtr(next.LockUntil),
				"updated_at": time.Now().UTC(),
			},
			"$inc": bson.M{"login_version": 1},
		}

		res, err := r.coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return domain.LoginState{}, fmt.Errorf("update login state: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return domain.LoginState{}, errCASExhausted
}

// loginVersionFilter matches the account only while login_version still holds
// the value that was read. Documents written before the field existed decode
// as version 0, so 0 also matches a missing field.
func loginVersionFilter(email string, version int64) bson.M {
	if version == 0 {
		return bson.M{
			"email": email,
			"$or": bson.A{
				bson.M{"login_version": int64(0)},
				bson.M{"login_version": bson.M{"$exists": false}},
			},
		}
	}
	return bson.M{"email": email, "login_version": version}
}

func (r *AccountRepository) Activate(ctx context.Context, email, token string, now time.Time) error {
	filter := bson.M{
		"email":              email,
		"verification_token": token,
		"account_status":     string(domain.StatusPendingVerification),
	}
	update := bson.M{
		"$set":   bson.M{"account_status": string(domain.StatusActive), "updated_at": now.UTC()},
		"$unset": bson.M{"verification_token": "", "token_expire_at": ""},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenAlreadyConsumed
	}
	return nil
}

func (r *AccountRepository) ReplaceVerificationToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error {
	filter := bson.M{"email": email, "account_status": string(domain.StatusPendingVerification)}
	update := bson.M{"$set": bson.M{
		"verification_token": token.Value,
		"token_expire_at":    token.ExpiresAt.UTC(),
		"updated_at":         now.UTC(),
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("replace verification token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) FindByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	doc, err := r.findOne(ctx, bson.M{"reset_token": token})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) SetResetToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error {
	update := bson.M{"$set": bson.M{
		"reset_token":           token.Value,
		"reset_token_expire_at": token.ExpiresAt.UTC(),
		"updated_at":            now.UTC(),
	}}

	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ResetPassword also bumps login_version so an in-flight login state CAS
// re-reads the cleared counter instead of overwriting it.
func (r *AccountRepository) ResetPassword(ctx context.Context, email, token, passwordHash string, now time.Time) error {
	filter := bson.M{"email": email, "reset_token": token}
	update := bson.M{
		"$set": bson.M{
			"password_hash": passwordHash,
			"fail_count":    0,
			"lock_until":    nil,
			"updated_at":    now.UTC(),
		},
		"$unset": bson.M{"reset_token": "", "reset_token_expire_at": ""},
		"$inc":   bson.M{"login_version": 1},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenAlreadyConsumed
	}
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, email string, status domain.AccountStatus, suspendedUntil *time.Time, reason string, now time.Time) error {
	update := bson.M{"$set": bson.M{
		"account_status":  string(status),
		"suspended_until": utcPtr(suspendedUntil),
		"suspend_reason":  reason,
		"updated_at":      now.UTC(),
	}}

	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
