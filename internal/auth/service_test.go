package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minerva-sms/minerva/internal/shared"
	"github.com/minerva-sms/minerva/internal/tenancy"
)

type memAuthRepo struct {
	accounts map[string]*Account
	sessions map[string]int64
}

func (r *memAuthRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	account, ok := r.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (r *memAuthRepo) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	r.sessions[id] = userID
	return nil
}

func (r *memAuthRepo) DeleteSession(_ context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func newAuthFixture(t *testing.T) (*Service, *memAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &memAuthRepo{
		accounts: map[string]*Account{
			"dana@school.test": {
				ID:           7,
				Email:        "dana@school.test",
				PasswordHash: string(hash),
				IsActive:     true,
				TenantID:     3,
			},
			"gone@school.test": {
				ID:           8,
				Email:        "gone@school.test",
				PasswordHash: string(hash),
				IsActive:     false,
			},
		},
		sessions: map[string]int64{},
	}
	return NewService(repo), repo
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, _ := newAuthFixture(t)

	account, err := svc.Authenticate(context.Background(), "dana@school.test", "open sesame")
	require.NoError(t, err)
	assert.Equal(t, int64(7), account.ID)

	p := account.Principal()
	assert.Equal(t, tenancy.Principal{UserID: 7, Tenant: 3}, p)
	assert.True(t, p.Bound())
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	// Unknown account, wrong password and inactive account all produce
	// the identical error value.
	_, err := svc.Authenticate(ctx, "nobody@school.test", "open sesame")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "dana@school.test", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "gone@school.test", "open sesame")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionRegistration(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sess-1", 7, time.Now().Add(time.Hour), "", ""))
	assert.Equal(t, int64(7), repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(ctx, "sess-1"))
	assert.NotContains(t, repo.sessions, "sess-1")
}
