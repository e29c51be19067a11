package summary

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("summary not found")

type Repository interface {
	Upsert(ctx context.Context, s *Summary) error
	GetByPatient(ctx context.Context, patientID int64) (*Summary, error)
	DeleteByPatient(ctx context.Context, patientID int64) error
}
