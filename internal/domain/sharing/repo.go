package sharing

import (
	"context"
	"errors"
)

var ErrTokenNotFound = errors.New("share token not found")

type TokenRepository interface {
	Insert(ctx context.Context, t *ShareToken) error
	GetByToken(ctx context.Context, token string) (*ShareToken, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*ShareToken, error)
}

type AccessLogRepository interface {
	Append(ctx context.Context, e *AccessLogEntry) error
	ListByPatient(ctx context.Context, patientID int64) ([]*AccessLogEntry, error)
}
