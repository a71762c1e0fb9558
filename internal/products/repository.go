package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/masig/pricebook/internal/platform/db"
	"github.com/masig/pricebook/internal/shared"
)

// Repository persists products and their price ledgers.
type Repository interface {
	ListProducts(ctx context.Context, search string) ([]Product, error)
	GetProduct(ctx context.Context, code string) (Product, error)
	// Ledger returns the entries for each code, newest first. Codes without
	// entries are absent from the map.
	Ledger(ctx context.Context, codes ...string) (map[string][]PriceEntry, error)
	CreateProduct(ctx context.Context, p Product, first PriceEntry) (PriceEntry, error)
	// EditProduct updates the product row and, when next is non-nil, appends
	// it to the ledger. Both changes commit together or not at all.
	EditProduct(ctx context.Context, p Product, next *PriceEntry) (*PriceEntry, error)
	DeleteLedger(ctx context.Context, code string) error
	DeleteProduct(ctx context.Context, code string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func transport(op string, err error) error {
	return fmt.Errorf("products: %s: %w: %w", op, shared.ErrTransport, err)
}

func (r *repository) ListProducts(ctx context.Context, search string) ([]Product, error) {
	query := `SELECT code, description, unit FROM products`
	args := []any{}
	if search != "" {
		query += ` WHERE code ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, transport("list", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Code, &p.Description, &p.Unit); err != nil {
			return nil, transport("list scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, transport("list", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes search match literally inside an ILIKE pattern.
func escapeLike(search string) string {
	return likeEscaper.Replace(search)
}

func (r *repository) GetProduct(ctx context.Context, code string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT code, description, unit FROM products WHERE code = $1`, code).
		Scan(&p.Code, &p.Description, &p.Unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %s: %w", code, shared.ErrNotFound)
		}
		return Product{}, transport("get", err)
	}
	return p, nil
}

func (r *repository) Ledger(ctx context.Context, codes ...string) (map[string][]PriceEntry, error) {
	out := make(map[string][]PriceEntry, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_code, effective_date, unit_price::text
		FROM price_history
		WHERE product_code = ANY($1)
		ORDER BY product_code, effective_date DESC, id DESC`, codes)
	if err != nil {
		return nil, transport("ledger", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e     PriceEntry
			price string
		)
		if err := rows.Scan(&e.Seq, &e.ProductCode, &e.EffectiveDate, &price); err != nil {
			return nil, transport("ledger scan", err)
		}
		e.UnitPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("products: ledger price %q: %w", price, err)
		}
		out[e.ProductCode] = append(out[e.ProductCode], e)
	}
	if err := rows.Err(); err != nil {
		return nil, transport("ledger", err)
	}
	return out, nil
}

func (r *repository) CreateProduct(ctx context.Context, p Product, first PriceEntry) (PriceEntry, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		if _, err := tx.Exec(ctx, `INSERT INTO products (code, description, unit, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`, p.Code, p.Description, p.Unit, now); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO price_history (product_code, effective_date, unit_price)
			VALUES ($1, $2, $3::numeric) RETURNING id`, p.Code, first.EffectiveDate, first.UnitPrice.String()).
			Scan(&first.Seq)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return PriceEntry{}, fmt.Errorf("product %s: %w", p.Code, shared.ErrDuplicate)
		}
		return PriceEntry{}, transport("create", err)
	}
	first.ProductCode = p.Code
	return first, nil
}

func (r *repository) EditProduct(ctx context.Context, p Product, next *PriceEntry) (*PriceEntry, error) {
	var appended *PriceEntry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE products SET description = $1, unit = $2, updated_at = $3 WHERE code = $4`,
			p.Description, p.Unit, time.Now(), p.Code)
		if err != nil {
			return transport("update", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product %s: %w", p.Code, shared.ErrNotFound)
		}
		if next == nil {
			return nil
		}
		e := *next
		e.ProductCode = p.Code
		if err := tx.QueryRow(ctx, `INSERT INTO price_history (product_code, effective_date, unit_price)
			VALUES ($1, $2, $3::numeric) RETURNING id`, e.ProductCode, e.EffectiveDate, e.UnitPrice.String()).
			Scan(&e.Seq); err != nil {
			return transport("append price", err)
		}
		appended = &e
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrTransport) {
			return nil, err
		}
		return nil, transport("edit", err)
	}
	return appended, nil
}

func (r *repository) DeleteLedger(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM price_history WHERE product_code = $1`, code); err != nil {
		return transport("delete ledger", err)
	}
	return nil
}

func (r *repository) DeleteProduct(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE code = $1`, code)
	if err != nil {
		return transport("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", code, shared.ErrNotFound)
	}
	return nil
}
