package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateStore_WindowResets(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return now })
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, ttl, err := store.Increment(ctx, "k", 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.Equal(t, 10*time.Second, ttl)
	}

	now = now.Add(11 * time.Second)
	count, _, err := store.Increment(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func doLogin(e *echo.Echo, mw echo.MiddlewareFunc, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec
}

func TestLoginRateLimit_RejectsOverLimit(t *testing.T) {
	e := echo.New()
	mw := LoginRateLimit(NewMemoryRateStore(), 2, time.Minute, zerolog.Nop())

	assert.Equal(t, http.StatusOK, doLogin(e, mw, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doLogin(e, mw, "10.0.0.1").Code)

	rec := doLogin(e, mw, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, doLogin(e, mw, "10.0.0.2").Code, "other clients are unaffected")
}

type brokenStore struct{}

func (brokenStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestLoginRateLimit_FailsOpen(t *testing.T) {
	e := echo.New()
	mw := LoginRateLimit(brokenStore{}, 1, time.Minute, zerolog.Nop())
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doLogin(e, mw, "10.0.0.1").Code)
	}
}
