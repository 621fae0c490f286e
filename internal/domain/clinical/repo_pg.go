package clinical

import (
	"context"

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *recordRepoPG) LockVisit(ctx context.Context, appointmentID uuid.UUID) (*visit, error) {
	var v visit
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, pet_id, tutor_id, status FROM appointments WHERE id = $1 FOR UPDATE`, appointmentID,
	).Scan(&v.ID, &v.PetID, &v.TutorID, &v.Status)
	if err != nil {
		return nil, db.NotFound(err)
	}
	// Separate statement: it must see an invoice committed while we waited
	// for the lock.
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE appointment_id = $1)`, appointmentID,
	).Scan(&v.Billed)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *recordRepoPG) CompleteVisit(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = 'COMPLETED', updated_at = NOW() WHERE id = $1`, appointmentID)
	return err
}

func (r *recordRepoPG) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medical_records WHERE appointment_id = $1)`, appointmentID,
	).Scan(&exists)
	return exists, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, appointment_id, symptoms, diagnosis, treatment, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		rec.ID, rec.AppointmentID, rec.Symptoms, rec.Diagnosis, rec.Treatment, rec.Notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) AddProduct(ctx context.Context, rp *RecordProduct) error {
	rp.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_record_products (id, medical_record_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`,
		rp.ID, rp.MedicalRecordID, rp.ProductID, rp.Quantity)
	return err
}

func (r *recordRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, appointment_id, symptoms, diagnosis, treatment, notes, created_at, updated_at
		FROM medical_records WHERE appointment_id = $1`, appointmentID,
	).Scan(&rec.ID, &rec.AppointmentID, &rec.Symptoms, &rec.Diagnosis, &rec.Treatment, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &rec, nil
}

func (r *recordRepoPG) ListProducts(ctx context.Context, recordID uuid.UUID) ([]*RecordProduct, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT mp.id, mp.medical_record_id, mp.product_id, p.name, mp.quantity
		FROM medical_record_products mp JOIN products p ON p.id = mp.product_id
		WHERE mp.medical_record_id = $1
		ORDER BY p.name, mp.id`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*RecordProduct{}
	for rows.Next() {
		var rp RecordProduct
		if err := rows.Scan(&rp.ID, &rp.MedicalRecordID, &rp.ProductID, &rp.Name, &rp.Quantity); err != nil {
			return nil, err
		}
		items = append(items, &rp)
	}
	return items, rows.Err()
}
