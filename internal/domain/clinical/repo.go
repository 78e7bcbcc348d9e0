package clinical

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the clinical records attached to an encounter.
// Errors are *apperr.Error values.
type Repository interface {
	// LockEncounter share-locks the encounter row until the transaction ends
	// and returns its span.
	LockEncounter(ctx context.Context, encounterID uuid.UUID) (*Span, error)
	EncounterExists(ctx context.Context, encounterID uuid.UUID) (bool, error)

	// Vital signs
	CreateVitalSign(ctx context.Context, v *VitalSign) error
	GetVitalSign(ctx context.Context, id uuid.UUID) (*VitalSign, error)
	UpdateVitalSign(ctx context.Context, v *VitalSign) error
	DeleteVitalSign(ctx context.Context, id uuid.UUID) error
	ListVitalSigns(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*VitalSign, int, error)

	// Diagnoses
	CreateDiagnosis(ctx context.Context, d *Diagnosis) error
	GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	UpdateDiagnosis(ctx context.Context, d *Diagnosis) error
	DeleteDiagnosis(ctx context.Context, id uuid.UUID) error
	ListDiagnoses(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error)

	// Treatments
	CreateTreatment(ctx context.Context, t *Treatment) error
	GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error)
	UpdateTreatment(ctx context.Context, t *Treatment) error
	DeleteTreatment(ctx context.Context, id uuid.UUID) error
	ListTreatments(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*Treatment, int, error)
}
