package record

import (
	"bytes"
	"context"

	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/platform/blobstore"
)

// PatientDirectory is the slice of the patient service the record pipeline
// needs.
type PatientDirectory interface {
	GetOrCreate(ctx context.Context, name, dateOfBirth string) (*patient.Patient, error)
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

// TxFunc runs fn atomically against the record store.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	patients  PatientDirectory
	records   Repository
	summaries SummaryPurger
	archive   blobstore.Store
	catalog   Catalog
	inTx      TxFunc
}

func NewService(
	patients PatientDirectory,
	records Repository,
	summaries SummaryPurger,
	archive blobstore.Store,
	catalog Catalog,
	inTx TxFunc,
) *Service {
	return &Service{
		patients:  patients,
		records:   records,
		summaries: summaries,
		archive:   archive,
		catalog:   catalog,
		inTx:      inTx,
	}
}

// LoadResult reports one sample data load.
type LoadResult struct {
	Patient           *patient.Patient
	RecordsLoaded     int
	HospitalCount     int
	AnomaliesDetected int
}

// LoadSample replaces the patient's stored data with the bundled
// demonstration dataset, creating the patient on first use. Prior records
// and the prior summary are removed in the same transaction that stores the
// new records, so a concurrent reader never observes a half-reloaded patient.
func (s *Service) LoadSample(ctx context.Context, patientName string, hospitals, categories []string) (*LoadResult, error) {
	sample, err := LoadSampleData(s.catalog, hospitals, categories)
	if err != nil {
		return nil, err
	}

	dob := ""
	if sample.PatientInfo != nil {
		dob = sample.PatientInfo.DateOfBirth
	}
	p, err := s.patients.GetOrCreate(ctx, patientName, dob)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.records.DeleteByPatient(ctx, p.ID); err != nil {
			return err
		}
		if err := s.summaries.DeleteByPatient(ctx, p.ID); err != nil {
			return err
		}
		return s.records.InsertBatch(ctx, p.ID, sample.Records)
	})
	if err != nil {
		return nil, err
	}

	distinct := make(map[string]bool)
	for _, r := range sample.Records {
		distinct[r.Hospital] = true
	}

	return &LoadResult{
		Patient:           p,
		RecordsLoaded:     len(sample.Records),
		HospitalCount:     len(distinct),
		AnomaliesDetected: len(Detect(sample.Records)),
	}, nil
}

// UploadResult reports one accepted upload.
type UploadResult struct {
	Patient       *patient.Patient
	RecordsLoaded int
	FileName      string
}

// Upload archives the raw document, validates it, and appends its records to
// the patient's data. The raw file is kept even when validation fails;
// nothing reaches the database in that case.
func (s *Service) Upload(ctx context.Context, patientName, fileName string, content []byte) (*UploadResult, error) {
	if _, err := s.archive.Save(ctx, fileName, bytes.NewReader(content)); err != nil {
		return nil, err
	}

	records, problems := ParseUpload(content, fileName)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	p, err := s.patients.GetOrCreate(ctx, patientName, "")
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.records.InsertBatch(ctx, p.ID, records)
	})
	if err != nil {
		return nil, err
	}

	return &UploadResult{Patient: p, RecordsLoaded: len(records), FileName: fileName}, nil
}

// Records returns the patient's stored records, optionally restricted to the
// given categories.
func (s *Service) Records(ctx context.Context, patientID int64, categories []string) ([]*Record, error) {
	return s.records.ListByPatient(ctx, patientID, categories, nil)
}

// RecordsView is a patient's stored records with derived chart series.
type RecordsView struct {
	Patient   *patient.Patient
	Records   []*Record
	ChartData ChartData
}

func (s *Service) PatientRecords(ctx context.Context, patientID int64, categories []string) (*RecordsView, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByPatient(ctx, patientID, categories, nil)
	if err != nil {
		return nil, err
	}
	return &RecordsView{Patient: p, Records: records, ChartData: ExtractChartData(records)}, nil
}
