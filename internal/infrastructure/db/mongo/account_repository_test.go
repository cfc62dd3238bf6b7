package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stockpulse/authcore/internal/core/domain"
)

func TestAccountDoc_VerifiedAccountOmitsToken(t *testing.T) {
	raw, err := bson.Marshal(toDoc(&domain.Account{Email: "a@x.com", Status: domain.StatusActive}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["verification_token"]; ok {
		t.Fatalf("verification_token must be absent so the sparse index skips the document")
	}
	if v, ok := m["login_version"]; !ok || v != int64(0) {
		t.Fatalf("expected login_version 0 on insert, got %v", v)
	}
}

func TestAccountDoc_TimesAreUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	lock := time.Date(2024, 3, 1, 18, 0, 0, 0, loc)

	got := toDoc(&domain.Account{Email: "a@x.com", LockUntil: &lock}).toDomain()
	if got.LockUntil == nil || got.LockUntil.Location() != time.UTC || !got.LockUntil.Equal(lock) {
		t.Fatalf("expected UTC lock instant equal to input, got %v", got.LockUntil)
	}
}

func TestLoginVersionFilter_MatchesDocumentsWithoutVersion(t *testing.T) {
	// A record written before login_version existed decodes as version 0.
	raw, err := bson.Marshal(bson.M{"email": "a@x.com", "fail_count": 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var legacy accountDoc
	if err := bson.Unmarshal(raw, &legacy); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if legacy.LoginVersion != 0 {
		t.Fatalf("expected version 0 for legacy document, got %d", legacy.LoginVersion)
	}

	filter := loginVersionFilter("a@x.com", legacy.LoginVersion)
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected two-way $or for version 0, got %v", filter)
	}
	if got := or[0].(bson.M)["login_version"]; got != int64(0) {
		t.Fatalf("expected explicit zero branch, got %v", got)
	}
	exists, ok := or[1].(bson.M)["login_version"].(bson.M)
	if !ok || exists["$exists"] != false {
		t.Fatalf("expected missing-field branch, got %v", or[1])
	}
	if _, ok := filter["login_version"]; ok {
		t.Fatalf("version 0 must not pin login_version directly: %v", filter)
	}
}

func TestLoginVersionFilter_PinsNonZeroVersion(t *testing.T) {
	filter := loginVersionFilter("a@x.com", 3)
	if filter["login_version"] != int64(3) || filter["email"] != "a@x.com" {
		t.Fatalf("unexpected filter %v", filter)
	}
	if _, ok := filter["$or"]; ok {
		t.Fatalf("non-zero version must not match missing fields: %v", filter)
	}
}

func TestLegacyLoginVersionFilter(t *testing.T) {
	cond, ok := legacyLoginVersionFilter()["login_version"].(bson.M)
	if !ok || cond["$exists"] != false {
		t.Fatalf("unexpected backfill filter %v", legacyLoginVersionFilter())
	}
}

func TestAccountDoc_ResetTokenRoundTrip(t *testing.T) {
	token := "rt"
	expires := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	got := toDoc(&domain.Account{Email: "a@x.com", ResetToken: &token, ResetExpireAt: &expires}).toDomain()
	if got.ResetToken == nil || *got.ResetToken != token {
		t.Fatalf("reset token lost: %v", got.ResetToken)
	}
	if got.ResetExpireAt == nil || !got.ResetExpireAt.Equal(expires) {
		t.Fatalf("reset expiry lost: %v", got.ResetExpireAt)
	}

	raw, err := bson.Marshal(toDoc(&domain.Account{Email: "a@x.com"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["reset_token"]; ok {
		t.Fatalf("reset_token must be absent so the sparse index skips the document")
	}
}
