package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugijo/eumaeus-system-sub002/internal/platform/db"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &accountRepoPG{pool: pool} }

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const profileCols = `id, email, password_hash, refresh_token_hash, user_id, tutor_id, created_at, updated_at`

func scanProfile(row pgx.Row) (*AuthProfile, error) {
	var p AuthProfile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.RefreshTokenHash, &p.UserID, &p.TutorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (r *accountRepoPG) GetProfileByEmail(ctx context.Context, email string) (*AuthProfile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM auth_profiles WHERE lower(email) = lower($1)`, email))
}

func (r *accountRepoPG) GetProfileByID(ctx context.Context, id uuid.UUID) (*AuthProfile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM auth_profiles WHERE id = $1`, id))
}

func (r *accountRepoPG) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*AuthProfile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM auth_profiles WHERE user_id = $1`, userID))
}

func (r *accountRepoPG) GetProfileByTutor(ctx context.Context, tutorID uuid.UUID) (*AuthProfile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM auth_profiles WHERE tutor_id = $1`, tutorID))
}

func (r *accountRepoPG) CreateProfile(ctx context.Context, p *AuthProfile) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO auth_profiles (id, email, password_hash, user_id, tutor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.Email, p.PasswordHash, p.UserID, p.TutorID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *accountRepoPG) SetRefreshHash(ctx context.Context, profileID uuid.UUID, hash *string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE auth_profiles SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`, profileID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) SwapRefreshHash(ctx context.Context, profileID uuid.UUID, oldHash, newHash string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE auth_profiles SET refresh_token_hash = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2`, profileID, oldHash, newHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountRepoPG) GetStaff(ctx context.Context, userID uuid.UUID) (*StaffRecord, error) {
	var s StaffRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT u.id, u.name, ro.name
		FROM users u LEFT JOIN roles ro ON ro.id = u.role_id
		WHERE u.id = $1`, userID,
	).Scan(&s.ID, &s.Name, &s.Role)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &s, nil
}

func (r *accountRepoPG) CreateStaff(ctx context.Context, s *StaffRecord) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, name, role_id)
		VALUES ($1, $2, (SELECT id FROM roles WHERE name = $3))`,
		s.ID, s.Name, s.Role)
	return err
}

func (r *accountRepoPG) GetActiveTutor(ctx context.Context, tutorID uuid.UUID) (*TutorRecord, error) {
	var t TutorRecord
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name FROM tutors WHERE id = $1 AND deleted_at IS NULL`, tutorID,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &t, nil
}
