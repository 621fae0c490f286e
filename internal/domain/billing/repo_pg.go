package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) Repository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *invoiceRepoPG) LoadBillable(ctx context.Context, appointmentID uuid.UUID) (*Billable, error) {
	c := r.conn(ctx)
	var b Billable
	err := c.QueryRow(ctx, `
		SELECT a.id, a.scheduled_at, a.status, p.id, p.name, p.species, t.id, t.name, t.email,
			EXISTS (SELECT 1 FROM invoices i WHERE i.appointment_id = a.id)
		FROM appointments a
		JOIN pets p ON p.id = a.pet_id
		JOIN tutors t ON t.id = a.tutor_id
		WHERE a.id = $1
		FOR UPDATE OF a`, appointmentID,
	).Scan(&b.Appointment.ID, &b.Appointment.ScheduledAt, &b.Appointment.Status,
		&b.Pet.ID, &b.Pet.Name, &b.Pet.Species,
		&b.Tutor.ID, &b.Tutor.Name, &b.Tutor.Email, &b.HasInvoice)
	if err != nil {
		return nil, db.NotFound(err)
	}

	rows, err := c.Query(ctx, `
		SELECT cs.name, s.price
		FROM appointment_services s JOIN clinic_services cs ON cs.id = s.service_id
		WHERE s.appointment_id = $1
		ORDER BY s.created_at, s.id`, appointmentID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s BilledService
		if err := rows.Scan(&s.Name, &s.Price); err != nil {
			rows.Close()
			return nil, err
		}
		b.Services = append(b.Services, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Products are billed at their current catalog price.
	rows, err = c.Query(ctx, `
		SELECT pr.name, mp.quantity, pr.price
		FROM medical_record_products mp
		JOIN medical_records mr ON mr.id = mp.medical_record_id
		JOIN products pr ON pr.id = mp.product_id
		WHERE mr.appointment_id = $1
		ORDER BY pr.name, mp.id`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p BilledProduct
		if err := rows.Scan(&p.Name, &p.Quantity, &p.UnitPrice); err != nil {
			return nil, err
		}
		b.Products = append(b.Products, p)
	}
	return &b, rows.Err()
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, appointment_id, status, total_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING issued_at, updated_at`,
		inv.ID, inv.AppointmentID, inv.Status, inv.TotalAmount,
	).Scan(&inv.IssuedAt, &inv.UpdatedAt)
}

func (r *invoiceRepoPG) AddItem(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.InvoiceID, it.Position, it.Description, it.Quantity, it.UnitPrice, it.TotalPrice)
	return err
}

func (r *invoiceRepoPG) SetTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET total_amount = $2, updated_at = NOW() WHERE id = $1`, id, total)
	return err
}

const invoiceSelect = `
	SELECT i.id, i.appointment_id, i.status, i.total_amount, i.issued_at, i.paid_at, i.updated_at,
		a.scheduled_at, a.status, p.id, p.name, p.species, t.id, t.name, t.email
	FROM invoices i
	JOIN appointments a ON a.id = i.appointment_id
	JOIN pets p ON p.id = a.pet_id
	JOIN tutors t ON t.id = a.tutor_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	inv := Invoice{Appointment: &Appointment{}, Pet: &Pet{}, Tutor: &Tutor{}}
	err := row.Scan(&inv.ID, &inv.AppointmentID, &inv.Status, &inv.TotalAmount, &inv.IssuedAt, &inv.PaidAt, &inv.UpdatedAt,
		&inv.Appointment.ScheduledAt, &inv.Appointment.Status,
		&inv.Pet.ID, &inv.Pet.Name, &inv.Pet.Species,
		&inv.Tutor.ID, &inv.Tutor.Name, &inv.Tutor.Email)
	if err != nil {
		return nil, db.NotFound(err)
	}
	inv.Appointment.ID = inv.AppointmentID
	return &inv, nil
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, invoiceSelect+` WHERE i.id = $1`, id))
}

func (r *invoiceRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, invoiceSelect+` WHERE i.id = $1 FOR UPDATE OF i`, id))
}

func (r *invoiceRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, invoiceSelect+` WHERE i.appointment_id = $1`, appointmentID))
}

func (r *invoiceRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status, paidAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW() WHERE id = $1`,
		id, status, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price, total_price
		FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Description, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *invoiceRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	clauses := []string{"TRUE"}
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if f.TutorID != nil {
		args = append(args, *f.TutorID)
		clauses = append(clauses, fmt.Sprintf("a.tutor_id = $%d", len(args)))
	}
	where := ` WHERE ` + strings.Join(clauses, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices i JOIN appointments a ON a.id = i.appointment_id`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`%s%s ORDER BY i.issued_at DESC LIMIT $%d OFFSET $%d`,
		invoiceSelect, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}
