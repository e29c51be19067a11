package record

import (
	"context"
	"fmt"

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

const recordCols = `id, patient_id, hospital, category, data, source_file, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.Hospital, &rec.Category, &rec.Data, &rec.SourceFile, &rec.CreatedAt)
	return &rec, err
}

func (r *repoPG) InsertBatch(ctx context.Context, patientID int64, records []*Record) error {
	q := r.conn(ctx)
	for _, rec := range records {
		row := q.QueryRow(ctx, `
			INSERT INTO records (patient_id, hospital, category, data, source_file)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			patientID, rec.Hospital, rec.Category, rec.Data, rec.SourceFile)
		if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return err
		}
		rec.PatientID = patientID
	}
	return nil
}

func (r *repoPG) DeleteByPatient(ctx context.Context, patientID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM records WHERE patient_id = $1`, patientID)
	return err
}

// ListByPatient returns records in insertion order. Empty filter slices mean
// no restriction.
func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, categories, hospitals []string) ([]*Record, error) {
	query := `SELECT ` + recordCols + ` FROM records WHERE patient_id = $1`
	args := []interface{}{patientID}
	if len(categories) > 0 {
		args = append(args, categories)
		query += fmt.Sprintf(` AND category = ANY($%d)`, len(args))
	}
	if len(hospitals) > 0 {
		args = append(args, hospitals)
		query += fmt.Sprintf(` AND hospital = ANY($%d)`, len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
