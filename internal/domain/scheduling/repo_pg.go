package scheduling

import (
	"context"
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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.id, a.pet_id, a.tutor_id, a.scheduled_at, a.status, a.notes, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PetID, &a.TutorID, &a.ScheduledAt, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, pet_id, tutor_id, scheduled_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.PetID, a.TutorID, a.ScheduledAt, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments a WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments a WHERE a.id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	clauses := []string{"p.deleted_at IS NULL"}
	args := []interface{}{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.PetID != nil {
		add("a.pet_id = $%d", *f.PetID)
	}
	if f.TutorID != nil {
		add("a.tutor_id = $%d", *f.TutorID)
	}
	if f.From != nil {
		add("a.scheduled_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.scheduled_at < $%d", *f.To)
	}
	from := ` FROM appointments a JOIN pets p ON p.id = a.pet_id WHERE ` + strings.Join(clauses, " AND ")

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s%s ORDER BY a.scheduled_at DESC LIMIT $%d OFFSET $%d`,
		apptCols, from, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) AddService(ctx context.Context, bs *BookedService) error {
	bs.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment_services (id, appointment_id, service_id, price)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		bs.ID, bs.AppointmentID, bs.ServiceID, bs.Price,
	).Scan(&bs.CreatedAt)
}

func (r *appointmentRepoPG) ListServices(ctx context.Context, appointmentID uuid.UUID) ([]*BookedService, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT s.id, s.appointment_id, s.service_id, c.name, s.price, s.created_at
		FROM appointment_services s JOIN clinic_services c ON c.id = s.service_id
		WHERE s.appointment_id = $1
		ORDER BY s.created_at, s.id`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BookedService
	for rows.Next() {
		var bs BookedService
		if err := rows.Scan(&bs.ID, &bs.AppointmentID, &bs.ServiceID, &bs.Name, &bs.Price, &bs.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &bs)
	}
	return items, rows.Err()
}

// =========== Catalog Repository ===========

type catalogRepoPG struct{ pool *pgxpool.Pool }

func NewCatalogRepoPG(pool *pgxpool.Pool) CatalogRepository { return &catalogRepoPG{pool: pool} }

const serviceCols = `id, name, description, price, active, created_at, updated_at`

func scanClinicService(row pgx.Row) (*ClinicService, error) {
	var cs ClinicService
	if err := row.Scan(&cs.ID, &cs.Name, &cs.Description, &cs.Price, &cs.Active, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
		return nil, db.NotFound(err)
	}
	return &cs, nil
}

func (r *catalogRepoPG) Create(ctx context.Context, cs *ClinicService) error {
	cs.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinic_services (id, name, description, price, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		cs.ID, cs.Name, cs.Description, cs.Price, cs.Active,
	).Scan(&cs.CreatedAt, &cs.UpdatedAt)
}

func (r *catalogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return scanClinicService(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+serviceCols+` FROM clinic_services WHERE id = $1`, id))
}

func (r *catalogRepoPG) Update(ctx context.Context, cs *ClinicService) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE clinic_services SET name = $2, description = $3, price = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		cs.ID, cs.Name, cs.Description, cs.Price, cs.Active,
	).Scan(&cs.CreatedAt, &cs.UpdatedAt)
	return db.NotFound(err)
}

func (r *catalogRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ClinicService, int, error) {
	where := `TRUE`
	if activeOnly {
		where = `active`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM clinic_services WHERE `+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+serviceCols+` FROM clinic_services WHERE `+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ClinicService
	for rows.Next() {
		cs, err := scanClinicService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cs)
	}
	return items, total, rows.Err()
}
