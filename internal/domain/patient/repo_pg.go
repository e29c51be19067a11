package patient

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagg/medagg/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, date_of_birth, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.CreatedAt)
	return &p, err
}

// Upsert inserts the patient or, when the name is already registered, resolves
// to the existing row. A date of birth only fills a row that has none; a value
// already on record is never overwritten.
func (r *repoPG) Upsert(ctx context.Context, p *Patient) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (name, date_of_birth)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET date_of_birth = COALESCE(patients.date_of_birth, EXCLUDED.date_of_birth)
		RETURNING `+patientCols,
		p.Name, p.DateOfBirth)
	saved, err := scanPatient(row)
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE name = $1`, name)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
