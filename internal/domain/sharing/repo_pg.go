package sharing

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

type tokenRepoPG struct{ pool *pgxpool.Pool }

func NewTokenRepoPG(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepoPG{pool: pool}
}

const tokenCols = `id, patient_id, token, scope, expires_at, created_at`

func scanToken(row pgx.Row) (*ShareToken, error) {
	var t ShareToken
	err := row.Scan(&t.ID, &t.PatientID, &t.Token, &t.Scope, &t.ExpiresAt, &t.CreatedAt)
	return &t, err
}

func (r *tokenRepoPG) Insert(ctx context.Context, t *ShareToken) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO share_tokens (patient_id, token, scope, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		t.PatientID, t.Token, t.Scope, t.ExpiresAt)
	return row.Scan(&t.ID, &t.CreatedAt)
}

func (r *tokenRepoPG) GetByToken(ctx context.Context, token string) (*ShareToken, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tokenCols+` FROM share_tokens WHERE token = $1`, token)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *tokenRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*ShareToken, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+tokenCols+` FROM share_tokens WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []*ShareToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

type accessLogRepoPG struct{ pool *pgxpool.Pool }

func NewAccessLogRepoPG(pool *pgxpool.Pool) AccessLogRepository {
	return &accessLogRepoPG{pool: pool}
}

func (r *accessLogRepoPG) Append(ctx context.Context, e *AccessLogEntry) error {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO access_logs (token_id, viewer_ip, provider_name, provider_org)
		VALUES ($1, $2, $3, $4)
		RETURNING id, accessed_at`,
		e.TokenID, e.ViewerIP, e.ProviderName, e.ProviderOrg)
	return row.Scan(&e.ID, &e.AccessedAt)
}

// ListByPatient returns the access history across all of the patient's
// tokens, newest first, with each entry's token value and scope attached.
func (r *accessLogRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*AccessLogEntry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT al.id, al.token_id, al.viewer_ip, al.provider_name, al.provider_org, al.accessed_at,
		       st.token, st.scope
		FROM access_logs al
		JOIN share_tokens st ON al.token_id = st.id
		WHERE st.patient_id = $1
		ORDER BY al.accessed_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*AccessLogEntry{}
	for rows.Next() {
		var e AccessLogEntry
		err := rows.Scan(&e.ID, &e.TokenID, &e.ViewerIP, &e.ProviderName, &e.ProviderOrg, &e.AccessedAt,
			&e.Token, &e.Scope)
		if err != nil {
			return nil, err
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}
