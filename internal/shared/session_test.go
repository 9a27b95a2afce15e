package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

func newTestManager(t *testing.T) (*SessionManager, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "minerva_session", time.Hour, false), client
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	_, ok := sess.Principal()
	assert.False(t, ok)

	p := tenancy.Principal{UserID: 7, Tenant: 3}
	sess.Authenticate(p)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := sessionCookie(t, rec, sm.CookieName())
	assert.True(t, cookie.HttpOnly)

	// A later request carrying the cookie resolves the same principal.
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	got, ok := loaded.Principal()
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestSessionDestroy(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.Authenticate(tenancy.Principal{UserID: 7, Tenant: 3})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := sessionCookie(t, rec, sm.CookieName())

	// Logout: destroy and commit clears both store and cookie.
	next := httptest.NewRequest(http.MethodPost, "/logout", nil)
	next.AddCookie(cookie)
	sess, err = sm.Load(ctx, next)
	require.NoError(t, err)
	sm.Destroy(sess)
	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cleared := sessionCookie(t, rec, sm.CookieName())
	assert.Equal(t, -1, cleared.MaxAge)

	// The old cookie no longer resolves a principal.
	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie)
	sess, err = sm.Load(ctx, again)
	require.NoError(t, err)
	_, ok := sess.Principal()
	assert.False(t, ok)
}

func TestSessionUnknownCookieIsAnonymous(t *testing.T) {
	sm, client := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "stale-id"})
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	_, ok := sess.Principal()
	assert.False(t, ok)

	// The client-supplied value is never adopted as the session id, so
	// nothing is ever stored under it either.
	assert.NotEqual(t, "stale-id", sess.ID)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	issued := sessionCookie(t, rec, sm.CookieName())
	assert.NotEqual(t, "stale-id", issued.Value)
	err = client.Get(ctx, "session:stale-id").Err()
	require.ErrorIs(t, err, redis.Nil)
}

func TestAuthenticateRotatesSessionID(t *testing.T) {
	sm, client := newTestManager(t)
	ctx := context.Background()

	// Seed an anonymous session whose id a third party could know.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	anon := sessionCookie(t, rec, sm.CookieName())

	// Logging in on that session issues a fresh id and drops the old one.
	login := httptest.NewRequest(http.MethodPost, "/login", nil)
	login.AddCookie(anon)
	sess, err = sm.Load(ctx, login)
	require.NoError(t, err)
	sess.Authenticate(tenancy.Principal{UserID: 7, Tenant: 3})
	assert.NotEqual(t, anon.Value, sess.ID)

	rec = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	rotated := sessionCookie(t, rec, sm.CookieName())
	assert.NotEqual(t, anon.Value, rotated.Value)
	err = client.Get(ctx, "session:"+anon.Value).Err()
	require.ErrorIs(t, err, redis.Nil)

	// The pre-login cookie never resolves the authenticated principal.
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(anon)
	stale, err := sm.Load(ctx, replay)
	require.NoError(t, err)
	_, ok := stale.Principal()
	assert.False(t, ok)

	// The rotated cookie does.
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(rotated)
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	got, ok := loaded.Principal()
	require.True(t, ok)
	assert.Equal(t, int64(7), got.UserID)
}
