package patient

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

// GetOrCreate resolves a patient by name, registering them on first contact.
// A non-empty dateOfBirth fills in a missing date of birth on an existing
// patient but never replaces one already on record.
func (s *Service) GetOrCreate(ctx context.Context, name, dateOfBirth string) (*Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("patient name is required")
	}

	p := &Patient{Name: name}
	if dob := strings.TrimSpace(dateOfBirth); dob != "" {
		p.DateOfBirth = &dob
	}
	if err := s.patients.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByName(ctx context.Context, name string) (*Patient, error) {
	return s.patients.GetByName(ctx, name)
}
