package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masig/pricebook/internal/platform/db"
	"github.com/masig/pricebook/internal/shared"
)

// Repository persists role and permission grants.
type Repository interface {
	Roles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	Permissions(ctx context.Context, userID uuid.UUID) ([]string, error)
	ListUsers(ctx context.Context) ([]UserAccess, error)
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role Role) error
	RevokeRole(ctx context.Context, userID uuid.UUID, role Role) error
	ReplacePermissions(ctx context.Context, userID uuid.UUID, perms []string) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func transport(op string, err error) error {
	return fmt.Errorf("rbac: %s: %w: %w", op, shared.ErrTransport, err)
}

func (r *repository) Roles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, transport("roles", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, transport("roles", err)
	}
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		roles = append(roles, Role(n))
	}
	return roles, nil
}

func (r *repository) Permissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission FROM user_permissions WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, transport("permissions", err)
	}
	perms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, transport("permissions", err)
	}
	return perms, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]UserAccess, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.email, u.first_name, u.last_name, u.created_at,
		COALESCE(array_agg(DISTINCT ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS roles,
		COALESCE(array_agg(DISTINCT up.permission) FILTER (WHERE up.permission IS NOT NULL), '{}') AS permissions
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN user_permissions up ON up.user_id = u.id
		GROUP BY u.id
		ORDER BY u.email`)
	if err != nil {
		return nil, transport("list users", err)
	}
	defer rows.Close()

	var out []UserAccess
	for rows.Next() {
		var (
			u     UserAccess
			roles []string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &roles, &u.Permissions); err != nil {
			return nil, transport("list users scan", err)
		}
		for _, role := range roles {
			u.Roles = append(u.Roles, Role(role))
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, transport("list users", err)
	}
	return out, nil
}

func (r *repository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, transport("user exists", err)
	}
	return exists, nil
}

func (r *repository) GrantRole(ctx context.Context, userID uuid.UUID, role Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, string(role))
	if err != nil {
		return transport("grant role", err)
	}
	return nil
}

func (r *repository) RevokeRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role)); err != nil {
		return transport("revoke role", err)
	}
	return nil
}

// ReplacePermissions deletes the user's permissions and inserts perms in
// one transaction.
func (r *repository) ReplacePermissions(ctx context.Context, userID uuid.UUID, perms []string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if len(perms) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO user_permissions (user_id, permission)
			SELECT $1, unnest($2::text[])`, userID, perms)
		return err
	})
	if err != nil {
		return transport("replace permissions", err)
	}
	return nil
}

func (r *repository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return transport("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, shared.ErrNotFound)
	}
	return nil
}
