package summary

import (
	"context"
	"errors"

	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/domain/record"
)

// ErrNoRecords means summary generation was requested for a patient with no
// stored records.
var ErrNoRecords = errors.New("no records found")

// RecordSource is the slice of the record pipeline the summary service
// needs.
type RecordSource interface {
	Records(ctx context.Context, patientID int64, categories []string) ([]*record.Record, error)
}

// PatientDirectory is the slice of the patient service the summary service
// needs.
type PatientDirectory interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

type Service struct {
	patients    PatientDirectory
	records     RecordSource
	summaries   Repository
	synthesizer *Synthesizer
}

func NewService(patients PatientDirectory, records RecordSource, summaries Repository, synthesizer *Synthesizer) *Service {
	return &Service{
		patients:    patients,
		records:     records,
		summaries:   summaries,
		synthesizer: synthesizer,
	}
}

// Generate synthesizes summaries over all of the patient's records and
// stores the result, replacing any prior summary.
func (s *Service) Generate(ctx context.Context, patientID int64) (*Result, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}

	records, err := s.records.Records(ctx, patientID, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	result := s.synthesizer.Synthesize(ctx, records)

	stored := &Summary{
		PatientID:        patientID,
		ClinicianSummary: result.ClinicianSummary,
		PatientSummary:   result.PatientSummary,
		Anomalies:        result.Anomalies,
	}
	if err := s.summaries.Upsert(ctx, stored); err != nil {
		return nil, err
	}
	return result, nil
}

// GetLatest returns the patient's stored summary. ErrNotFound means no
// summary has been generated yet.
func (s *Service) GetLatest(ctx context.Context, patientID int64) (*Summary, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.summaries.GetByPatient(ctx, patientID)
}
