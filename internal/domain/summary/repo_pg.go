package summary

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

const summaryCols = `id, patient_id, clinician_summary, patient_summary, anomalies, created_at`

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	err := row.Scan(&s.ID, &s.PatientID, &s.ClinicianSummary, &s.PatientSummary, &s.Anomalies, &s.CreatedAt)
	return &s, err
}

// Upsert stores the patient's summary, replacing any prior one. A fresh
// created_at marks regeneration time.
func (r *repoPG) Upsert(ctx context.Context, s *Summary) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO summaries (patient_id, clinician_summary, patient_summary, anomalies)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE SET
			clinician_summary = EXCLUDED.clinician_summary,
			patient_summary = EXCLUDED.patient_summary,
			anomalies = EXCLUDED.anomalies,
			created_at = now()
		RETURNING id, created_at`,
		s.PatientID, s.ClinicianSummary, s.PatientSummary, s.Anomalies)
	return row.Scan(&s.ID, &s.CreatedAt)
}

func (r *repoPG) GetByPatient(ctx context.Context, patientID int64) (*Summary, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM summaries WHERE patient_id = $1`, patientID)
	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) DeleteByPatient(ctx context.Context, patientID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM summaries WHERE patient_id = $1`, patientID)
	return err
}
