package patient

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no patient matches the lookup key.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Upsert(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetByName(ctx context.Context, name string) (*Patient, error)
}
