package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/domain/record"
	"github.com/medagg/medagg/internal/domain/summary"
)

// Authorization failures. The identity sentinels stay internal: callers
// surface them under one generic message so a probing caller cannot tell
// which check failed, while the precise reason is logged server-side.
var (
	ErrTokenExpired            = errors.New("share token expired")
	ErrVerificationUnavailable = errors.New("no date of birth on record")
	ErrNameMismatch            = errors.New("patient name does not match")
	ErrDobMismatch             = errors.New("date of birth does not match")
)

// IsIdentityError reports whether err is one of the identity verification
// failures.
func IsIdentityError(err error) bool {
	return errors.Is(err, ErrVerificationUnavailable) ||
		errors.Is(err, ErrNameMismatch) ||
		errors.Is(err, ErrDobMismatch)
}

// ScopeError marks a requested scope entry outside the known category set.
type ScopeError struct{ Entry string }

func (e *ScopeError) Error() string {
	return fmt.Sprintf("unknown scope entry: %s", e.Entry)
}

// PatientDirectory is the slice of the patient service the sharing service
// needs.
type PatientDirectory interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
	GetByName(ctx context.Context, name string) (*patient.Patient, error)
}

// RecordSource is the slice of the record pipeline the sharing service
// needs.
type RecordSource interface {
	Records(ctx context.Context, patientID int64, categories []string) ([]*record.Record, error)
}

// SummaryReader is the slice of the summary store the sharing service
// needs. Satisfied by the summary repository.
type SummaryReader interface {
	GetByPatient(ctx context.Context, patientID int64) (*summary.Summary, error)
}

type Service struct {
	patients  PatientDirectory
	records   RecordSource
	summaries SummaryReader
	tokens    TokenRepository
	logs      AccessLogRepository
	ttlHours  int
	logger    zerolog.Logger
}

func NewService(
	patients PatientDirectory,
	records RecordSource,
	summaries SummaryReader,
	tokens TokenRepository,
	logs AccessLogRepository,
	ttlHours int,
	logger zerolog.Logger,
) *Service {
	if ttlHours == 0 {
		ttlHours = 24
	}
	return &Service{
		patients:  patients,
		records:   records,
		summaries: summaries,
		tokens:    tokens,
		logs:      logs,
		ttlHours:  ttlHours,
		logger:    logger,
	}
}

// IssueResult is a freshly issued token with the expiry that was applied.
type IssueResult struct {
	Token       *ShareToken
	ExpiryHours int
}

// Issue creates a share token for the patient. An empty scope grants the
// full category set; scope entries are canonicalized and must name known
// categories. Zero expiryHours applies the configured default.
func (s *Service) Issue(ctx context.Context, patientID int64, scope []string, expiryHours int) (*IssueResult, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}

	if len(scope) == 0 {
		scope = record.KnownCategories()
	} else {
		canonical := make([]string, 0, len(scope))
		for _, entry := range scope {
			c := record.CanonicalCategory(entry)
			if !knownCategory(c) {
				return nil, &ScopeError{Entry: entry}
			}
			canonical = append(canonical, c)
		}
		scope = canonical
	}

	if expiryHours == 0 {
		expiryHours = s.ttlHours
	}

	value, err := NewTokenString()
	if err != nil {
		return nil, err
	}

	t := &ShareToken{
		PatientID: patientID,
		Token:     value,
		Scope:     scope,
		ExpiresAt: time.Now().Add(time.Duration(expiryHours) * time.Hour),
	}
	if err := s.tokens.Insert(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("patient_id", patientID).
		Int64("token_id", t.ID).
		Strs("scope", scope).
		Int("expiry_hours", expiryHours).
		Msg("share token issued")

	return &IssueResult{Token: t, ExpiryHours: expiryHours}, nil
}

func knownCategory(c string) bool {
	for _, known := range record.KnownCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// ListTokens returns the patient's tokens, newest first.
func (s *Service) ListTokens(ctx context.Context, patientID int64) ([]*ShareToken, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.tokens.ListByPatient(ctx, patientID)
}

// AccessLogs returns the access history across the patient's tokens.
func (s *Service) AccessLogs(ctx context.Context, patientID int64) ([]*AccessLogEntry, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.logs.ListByPatient(ctx, patientID)
}

// AccessRequest is one provider access attempt.
type AccessRequest struct {
	Token        string
	PatientName  string
	DateOfBirth  string
	ProviderName string
	Organization string
	ViewerIP     string
}

// AccessView is the scope-restricted view returned on a successful access.
type AccessView struct {
	Patient   *patient.Patient
	Scope     []string
	Records   []*record.Record
	Summary   *summary.Summary
	ChartData record.ChartData
}

// Authorize validates a presented token and claimed identity, then returns
// the patient's data restricted to the token scope. Every check must pass
// before any data is read and before the access log entry is written; a
// failed attempt leaves no trace in the log.
func (s *Service) Authorize(ctx context.Context, req AccessRequest) (*AccessView, error) {
	t, err := s.tokens.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if t.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	p, err := s.patients.Get(ctx, t.PatientID)
	if err != nil {
		return nil, err
	}
	if err := verifyIdentity(p, req.PatientName, req.DateOfBirth); err != nil {
		s.logger.Warn().
			Int64("patient_id", t.PatientID).
			Int64("token_id", t.ID).
			Str("viewer_ip", req.ViewerIP).
			Str("reason", err.Error()).
			Msg("identity verification failed")
		return nil, err
	}

	providerName := strings.TrimSpace(req.ProviderName)
	if providerName == "" {
		providerName = req.PatientName
	}
	var org *string
	if o := strings.TrimSpace(req.Organization); o != "" {
		org = &o
	}

	entry := &AccessLogEntry{
		TokenID:      t.ID,
		ViewerIP:     req.ViewerIP,
		ProviderName: providerName,
		ProviderOrg:  org,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		return nil, err
	}

	records, err := s.records.Records(ctx, t.PatientID, t.Scope)
	if err != nil {
		return nil, err
	}

	sum, err := s.summaries.GetByPatient(ctx, t.PatientID)
	if err != nil && !errors.Is(err, summary.ErrNotFound) {
		return nil, err
	}

	s.logger.Info().
		Int64("patient_id", t.PatientID).
		Int64("token_id", t.ID).
		Str("viewer_ip", req.ViewerIP).
		Msg("provider access granted")

	return &AccessView{
		Patient:   p,
		Scope:     t.Scope,
		Records:   records,
		Summary:   sum,
		ChartData: record.ExtractChartData(records),
	}, nil
}

// verifyIdentity checks the claimed name and date of birth against the
// stored patient. Name comparison ignores case and surrounding whitespace;
// the date of birth must match exactly.
func verifyIdentity(p *patient.Patient, claimedName, claimedDOB string) error {
	if p.DateOfBirth == nil || *p.DateOfBirth == "" {
		return ErrVerificationUnavailable
	}
	stored := strings.ToLower(strings.TrimSpace(p.Name))
	claimed := strings.ToLower(strings.TrimSpace(claimedName))
	if stored != claimed {
		return ErrNameMismatch
	}
	if *p.DateOfBirth != claimedDOB {
		return ErrDobMismatch
	}
	return nil
}

// LookupView aggregates everything the patient portal shows for one
// patient.
type LookupView struct {
	Patient   *patient.Patient
	Records   []*record.Record
	Summary   *summary.Summary
	ChartData record.ChartData
	Tokens    []*ShareToken
	Logs      []*AccessLogEntry
}

// Lookup assembles the aggregate view for a patient found by exact name.
func (s *Service) Lookup(ctx context.Context, name string) (*LookupView, error) {
	p, err := s.patients.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	records, err := s.records.Records(ctx, p.ID, nil)
	if err != nil {
		return nil, err
	}

	sum, err := s.summaries.GetByPatient(ctx, p.ID)
	if err != nil && !errors.Is(err, summary.ErrNotFound) {
		return nil, err
	}

	tokens, err := s.tokens.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	return &LookupView{
		Patient:   p,
		Records:   records,
		Summary:   sum,
		ChartData: record.ExtractChartData(records),
		Tokens:    tokens,
		Logs:      logs,
	}, nil
}
