package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients. Errors are *apperr.Error values.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
