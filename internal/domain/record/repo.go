package record

import "context"

type Repository interface {
	InsertBatch(ctx context.Context, patientID int64, records []*Record) error
	DeleteByPatient(ctx context.Context, patientID int64) error
	ListByPatient(ctx context.Context, patientID int64, categories, hospitals []string) ([]*Record, error)
}

// SummaryPurger removes a patient's stored summary alongside a record reload,
// so a replaced dataset never keeps a stale narrative. Satisfied by the
// summary repository.
type SummaryPurger interface {
	DeleteByPatient(ctx context.Context, patientID int64) error
}
