package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/domain"
)

type stubValidator struct {
	subject string
	err     error
	calls   int
}

func (v *stubValidator) Validate(string) (string, error) {
	v.calls++
	return v.subject, v.err
}

type stubLookup struct {
	accounts map[string]*domain.Account
	err      error
}

func (l stubLookup) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if l.err != nil {
		return nil, l.err
	}
	a, ok := l.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

func adminLookup() stubLookup {
	return stubLookup{accounts: map[string]*domain.Account{
		"root@x.com": {Email: "root@x.com", FullName: "Root", Role: domain.RoleAdmin, Status: domain.StatusActive},
	}}
}

// runAuth executes Authenticate and returns the identity seen by the next
// handler, if any.
func runAuth(t *testing.T, header string, v *stubValidator, lookup AccountLookup, prepare func(echo.Context)) (domain.Identity, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if prepare != nil {
		prepare(c)
	}

	var (
		seen   domain.Identity
		found  bool
		called bool
	)
	handler := Authenticate(v, lookup, zerolog.Nop())(func(c echo.Context) error {
		called = true
		seen, found = c.Get(IdentityKey).(domain.Identity)
		if found {
			ctxID, ok := domain.IdentityFromContext(c.Request().Context())
			if !ok || ctxID != seen {
				t.Fatalf("request context identity mismatch: %+v vs %+v", ctxID, seen)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return seen, found
}

func TestAuthenticate_ValidToken(t *testing.T) {
	v := &stubValidator{subject: "root@x.com"}
	id, ok := runAuth(t, "Bearer good", v, adminLookup(), nil)
	if !ok {
		t.Fatalf("expected identity attached")
	}
	if id.Email != "root@x.com" || id.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticate_MissingHeaderIsAnonymous(t *testing.T) {
	v := &stubValidator{}
	if _, ok := runAuth(t, "", v, adminLookup(), nil); ok {
		t.Fatalf("expected anonymous request")
	}
	if v.calls != 0 {
		t.Fatalf("validator must not run without a bearer token")
	}
}

func TestAuthenticate_InvalidHeaderFormat(t *testing.T) {
	v := &stubValidator{subject: "root@x.com"}
	for _, h := range []string{"Token abc", "Bearer", "Bearer   "} {
		if _, ok := runAuth(t, h, v, adminLookup(), nil); ok {
			t.Fatalf("header %q: expected anonymous request", h)
		}
	}
}

func TestAuthenticate_InvalidTokenIsAnonymous(t *testing.T) {
	for _, err := range []error{domain.ErrTokenExpired, domain.ErrSignatureInvalid, domain.ErrTokenMalformed} {
		v := &stubValidator{err: err}
		if _, ok := runAuth(t, "Bearer bad", v, adminLookup(), nil); ok {
			t.Fatalf("%v: expected anonymous request", err)
		}
	}
}

func TestAuthenticate_UnknownSubjectIsAnonymous(t *testing.T) {
	v := &stubValidator{subject: "gone@x.com"}
	if _, ok := runAuth(t, "Bearer good", v, adminLookup(), nil); ok {
		t.Fatalf("expected anonymous request for deleted subject")
	}
}

func TestAuthenticate_LookupFailureIsAnonymous(t *testing.T) {
	v := &stubValidator{subject: "root@x.com"}
	if _, ok := runAuth(t, "Bearer good", v, stubLookup{err: errors.New("db down")}, nil); ok {
		t.Fatalf("expected anonymous request on lookup failure")
	}
}

func TestAuthenticate_SkipsWhenIdentityPresent(t *testing.T) {
	v := &stubValidator{subject: "root@x.com"}
	upstream := domain.Identity{Email: "first@x.com", Role: domain.RoleUser}

	id, ok := runAuth(t, "Bearer good", v, adminLookup(), func(c echo.Context) {
		c.Set(IdentityKey, upstream)
		c.SetRequest(c.Request().WithContext(domain.WithIdentity(c.Request().Context(), upstream)))
	})
	if !ok || id != upstream {
		t.Fatalf("expected upstream identity kept, got %+v", id)
	}
	if v.calls != 0 {
		t.Fatalf("validator must not run when identity already attached")
	}
}

func TestAuthenticate_RoleComesFromStore(t *testing.T) {
	lookup := stubLookup{accounts: map[string]*domain.Account{
		"a@x.com": {Email: "a@x.com", Role: domain.RoleUser, Status: domain.StatusActive},
	}}
	v := &stubValidator{subject: "a@x.com"}

	id, _ := runAuth(t, "Bearer good", v, lookup, nil)
	if id.Role != domain.RoleUser {
		t.Fatalf("expected USER, got %s", id.Role)
	}

	lookup.accounts["a@x.com"].Role = domain.RoleAdmin
	id, _ = runAuth(t, "Bearer good", v, lookup, nil)
	if id.Role != domain.RoleAdmin {
		t.Fatalf("expected promotion visible on next request, got %s", id.Role)
	}
}
