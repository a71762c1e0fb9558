package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masig/pricebook/internal/shared"
)

// Repository reads and writes activity log rows.
type Repository interface {
	Sink
	// Find returns entries within filter's bounds, newest first. A Limit of
	// zero or less returns every match.
	Find(ctx context.Context, filter ListFilter) ([]Entry, error)
	// PruneBefore deletes entries created before cutoff and returns the
	// number removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Insert stores entry. Re-inserting an entry with the same ID is a no-op so
// queued deliveries can be retried safely.
func (r *repository) Insert(ctx context.Context, entry Entry) error {
	details := []byte("{}")
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("activity: encode details: %w", err)
		}
		details = raw
	}
	query := `INSERT INTO activity_logs (id, user_id, user_email, action_type, product_code, product_name, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	          ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.UserID, entry.UserEmail, string(entry.Action),
		entry.ProductCode, entry.ProductName, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity: insert: %w: %w", shared.ErrTransport, err)
	}
	return nil
}

func (r *repository) Find(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Action != "" && filter.Action != "all" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("action_type = $%d", len(args)))
	}

	query := `SELECT id, user_id, user_email, action_type, product_code, product_name, details, created_at
	          FROM activity_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w: %w", shared.ErrTransport, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &action, &e.ProductCode, &e.ProductName, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("activity: decode details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: list: %w: %w", shared.ErrTransport, err)
	}
	return entries, nil
}

// PruneBefore removes entries older than cutoff.
func (r *repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activity: prune: %w: %w", shared.ErrTransport, err)
	}
	return tag.RowsAffected(), nil
}
