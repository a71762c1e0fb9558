package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/masig/pricebook/internal/auth"
	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubRepo struct {
	mu    sync.Mutex
	users map[string]auth.User
	roles map[uuid.UUID]rbac.Role
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]auth.User{}, roles: map[uuid.UUID]rbac.Role{}}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, u auth.User, grantAdmin bool) (auth.User, rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return auth.User{}, "", fmt.Errorf("email %s: %w", u.Email, shared.ErrDuplicate)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	role := rbac.RoleEmployee
	if len(s.roles) == 0 || grantAdmin {
		role = rbac.RoleAdmin
	}
	s.users[u.Email] = u
	s.roles[u.ID] = role
	return u, role, nil
}

// Resolve satisfies auth.GrantResolver.
func (s *stubRepo) Resolve(ctx context.Context, userID uuid.UUID) rbac.Grants {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[userID]
	if !ok {
		return rbac.Grants{}
	}
	return rbac.Grants{Roles: []rbac.Role{role}}
}

func newSessions(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sm, err := shared.NewSessionManager(client, "pricebook_session", testSecret, time.Hour, false)
	require.NoError(t, err)
	return sm, mr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signUpInput(email string) auth.SignUpInput {
	return auth.SignUpInput{
		FirstName:       "Ana",
		LastName:        "Reyes",
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}
