package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masig/pricebook/internal/platform/db"
	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	// CreateUser stores u and assigns its role. The first account always
	// becomes admin; later accounts become admin only when grantAdmin is set.
	CreateUser(ctx context.Context, u User, grantAdmin bool) (User, rbac.Role, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, first_name, last_name, created_at
		FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w: %w", shared.ErrTransport, err)
	}
	return &u, nil
}

// CreateUser inserts the user and its role in one transaction. The role
// table is locked so two concurrent first sign-ups cannot both become admin.
func (r *PGRepository) CreateUser(ctx context.Context, u User, grantAdmin bool) (User, rbac.Role, error) {
	role := rbac.RoleEmployee
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE user_roles IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, first_name, last_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, created_at`,
			u.Email, u.PasswordHash, u.FirstName, u.LastName, now).Scan(&u.ID, &u.CreatedAt); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles`).Scan(&count); err != nil {
			return err
		}
		if count == 0 || grantAdmin {
			role = rbac.RoleAdmin
		}
		_, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, string(role))
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, "", fmt.Errorf("email %s: %w", u.Email, shared.ErrDuplicate)
		}
		return User{}, "", fmt.Errorf("auth: create user: %w: %w", shared.ErrTransport, err)
	}
	return u, role, nil
}

var _ Repository = (*PGRepository)(nil)
