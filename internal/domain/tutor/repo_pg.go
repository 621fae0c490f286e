package tutor

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

// =========== Tutor Repository ===========

type tutorRepoPG struct{ pool *pgxpool.Pool }

func NewTutorRepoPG(pool *pgxpool.Pool) TutorRepository { return &tutorRepoPG{pool: pool} }

const tutorCols = `id, name, email, phone, document, address, created_at, updated_at, deleted_at`

func scanTutor(row pgx.Row) (*Tutor, error) {
	var t Tutor
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Document, &t.Address,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &t, nil
}

func (r *tutorRepoPG) Create(ctx context.Context, t *Tutor) error {
	t.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tutors (id, name, email, phone, document, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Email, t.Phone, t.Document, t.Address,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *tutorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tutor, error) {
	return scanTutor(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tutorCols+` FROM tutors WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *tutorRepoPG) Update(ctx context.Context, t *Tutor) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE tutors SET name = $2, email = $3, phone = $4, document = $5, address = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Email, t.Phone, t.Document, t.Address,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return db.NotFound(err)
}

func (r *tutorRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE tutors SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *tutorRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Tutor, int, error) {
	where := `deleted_at IS NULL`
	args := []interface{}{}
	if q = strings.TrimSpace(q); q != "" {
		args = append(args, "%"+q+"%")
		where += ` AND (name ILIKE $1 OR email ILIKE $1)`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tutors WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tutors WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		tutorCols, where, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Tutor
	for rows.Next() {
		t, err := scanTutor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// =========== Pet Repository ===========

type petRepoPG struct{ pool *pgxpool.Pool }

func NewPetRepoPG(pool *pgxpool.Pool) PetRepository { return &petRepoPG{pool: pool} }

const petCols = `p.id, p.tutor_id, p.name, p.species, p.breed, p.birth_date, p.weight_kg, p.notes,
	p.created_at, p.updated_at, p.deleted_at`

const activePet = `p.deleted_at IS NULL AND t.deleted_at IS NULL`

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	err := row.Scan(&p.ID, &p.TutorID, &p.Name, &p.Species, &p.Breed, &p.BirthDate, &p.WeightKg, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (r *petRepoPG) Create(ctx context.Context, p *Pet) error {
	p.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO pets (id, tutor_id, name, species, breed, birth_date, weight_kg, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.TutorID, p.Name, p.Species, p.Breed, p.BirthDate, p.WeightKg, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *petRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	return scanPet(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+petCols+` FROM pets p JOIN tutors t ON t.id = p.tutor_id
		WHERE p.id = $1 AND `+activePet, id))
}

func (r *petRepoPG) Update(ctx context.Context, p *Pet) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE pets SET tutor_id = $2, name = $3, species = $4, breed = $5, birth_date = $6,
			weight_kg = $7, notes = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING created_at, updated_at`,
		p.ID, p.TutorID, p.Name, p.Species, p.Breed, p.BirthDate, p.WeightKg, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.NotFound(err)
}

func (r *petRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE pets SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *petRepoPG) SoftDeleteByTutor(ctx context.Context, tutorID uuid.UUID) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE pets SET deleted_at = NOW(), updated_at = NOW() WHERE tutor_id = $1 AND deleted_at IS NULL`, tutorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *petRepoPG) List(ctx context.Context, f PetFilter, limit, offset int) ([]*Pet, int, error) {
	clauses := []string{activePet}
	args := []interface{}{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.TutorID != nil {
		add("p.tutor_id = $%d", *f.TutorID)
	}
	if f.Species != "" {
		add("lower(p.species) = lower($%d)", f.Species)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("p.name ILIKE $%d", "%"+q+"%")
	}
	where := strings.Join(clauses, " AND ")
	from := ` FROM pets p JOIN tutors t ON t.id = p.tutor_id WHERE ` + where

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s%s ORDER BY p.name LIMIT $%d OFFSET $%d`, petCols, from, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
