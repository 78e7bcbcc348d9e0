package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists encounters. Errors are *apperr.Error values.
type Repository interface {
	// LockPatient takes a share lock on the patient row for the rest of the
	// transaction so the patient cannot be deleted underneath a new encounter.
	LockPatient(ctx context.Context, patientID uuid.UUID) error
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)

	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, enc *Encounter) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
}
