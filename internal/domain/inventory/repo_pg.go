package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type productRepoPG struct{ pool *pgxpool.Pool }

func NewProductRepoPG(pool *pgxpool.Pool) ProductRepository { return &productRepoPG{pool: pool} }

func (r *productRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const productCols = `id, name, description, quantity, price, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Quantity, &p.Price, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (r *productRepoPG) Create(ctx context.Context, p *Product) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (id, name, description, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Quantity, p.Price,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *productRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *productRepoPG) Update(ctx context.Context, p *Product) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE products SET name = $2, description = $3, quantity = $4, price = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Quantity, p.Price,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.NotFound(err)
}

func (r *productRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE products SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *productRepoPG) List(ctx context.Context, q string, lowOnly bool, limit, offset int) ([]*Product, int, error) {
	clauses := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	if q = strings.TrimSpace(q); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if lowOnly {
		args = append(args, LowStockThreshold)
		clauses = append(clauses, fmt.Sprintf("quantity <= $%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		productCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *productRepoPG) Decrement(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	var remaining int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND quantity >= $2
		RETURNING quantity`, id, qty,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Nothing updated: either the product is gone or the guard rejected it.
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, db.ErrNotFound
	}
	return 0, ErrInsufficientStock
}

func (r *productRepoPG) RecordUsage(ctx context.Context, u *Usage) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO product_usages (id, product_id, medical_record_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING used_at`,
		u.ID, u.ProductID, u.MedicalRecordID, u.Quantity,
	).Scan(&u.UsedAt)
}

func (r *productRepoPG) ListUsage(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*Usage, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM product_usages WHERE product_id = $1`, productID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, product_id, medical_record_id, quantity, used_at
		FROM product_usages WHERE product_id = $1
		ORDER BY used_at DESC, id LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.ID, &u.ProductID, &u.MedicalRecordID, &u.Quantity, &u.UsedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &u)
	}
	return items, total, rows.Err()
}
