package rbac

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]UserAccess
	rolesErr error
	permsErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[uuid.UUID]UserAccess{}}
}

func (m *memoryRepo) add(email string, roles []Role, perms ...string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = UserAccess{ID: id, Email: email, Roles: roles, Permissions: perms}
	return id
}

func (m *memoryRepo) Roles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	return slices.Clone(m.users[userID].Roles), nil
}

func (m *memoryRepo) Permissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.permsErr != nil {
		return nil, m.permsErr
	}
	return slices.Clone(m.users[userID].Permissions), nil
}

func (m *memoryRepo) ListUsers(ctx context.Context) ([]UserAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []UserAccess
	for _, u := range m.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b UserAccess) int {
		switch {
		case a.Email < b.Email:
			return -1
		case a.Email > b.Email:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memoryRepo) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *memoryRepo) GrantRole(ctx context.Context, userID uuid.UUID, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	if !slices.Contains(u.Roles, role) {
		u.Roles = append(u.Roles, role)
	}
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) RevokeRole(ctx context.Context, userID uuid.UUID, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.Roles = slices.DeleteFunc(u.Roles, func(r Role) bool { return r == role })
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) ReplacePermissions(ctx context.Context, userID uuid.UUID, perms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.Permissions = slices.Clone(perms)
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, shared.ErrNotFound)
	}
	delete(m.users, userID)
	return nil
}

var errFake = fmt.Errorf("fake failure")
