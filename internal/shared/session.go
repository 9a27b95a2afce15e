package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minerva-sms/minerva/internal/tenancy"
)

// SessionManager orchestrates cookie based sessions backed by Redis. A
// session carries the authenticated principal between requests.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	prevID    string
	principal tenancy.Principal
	authed    bool
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	UserID     int64 `json:"user_id"`
	TenantID   int64 `json:"tenant_id"`
	SuperAdmin bool  `json:"super_admin"`
	Authed     bool  `json:"authed"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Load loads the session referenced by the request cookie, or creates a
// fresh anonymous one.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Unknown cookie values are never adopted as session ids.
			return sm.newSession(), nil
		}
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.principal = tenancy.Principal{
		UserID:     stored.UserID,
		Tenant:     tenancy.ID(stored.TenantID),
		SuperAdmin: stored.SuperAdmin,
	}
	sess.authed = stored.Authed
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}
	if sess.isNew && sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.prevID != "" && sess.prevID != sess.ID {
		if err := sm.client.Del(ctx, sm.redisKey(sess.prevID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sess.prevID = ""
	}
	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sessionPayload{
			UserID:     sess.principal.UserID,
			TenantID:   int64(sess.principal.Tenant),
			SuperAdmin: sess.principal.SuperAdmin,
			Authed:     sess.authed,
		})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}
	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		})
	}
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

// Authenticate binds the principal to the session and rotates the
// session id so the privilege change never rides a pre-login id.
func (s *Session) Authenticate(p tenancy.Principal) {
	if !s.isNew && s.prevID == "" {
		s.prevID = s.ID
	}
	if !s.isNew {
		s.ID = uuid.NewString()
	}
	s.principal = p
	s.authed = true
	s.dirty = true
}

// Principal returns the bound principal; ok is false for anonymous
// sessions.
func (s *Session) Principal() (tenancy.Principal, bool) {
	if s == nil || !s.authed {
		return tenancy.Principal{}, false
	}
	return s.principal, true
}

func (sm *SessionManager) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true, dirty: true}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}
