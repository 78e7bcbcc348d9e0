package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/validate"
)

const (
	maxFHIRID = 64
	maxType   = 64
)

// Encounter maps to the encounters table. A nil EndTime means the encounter is still open.
type Encounter struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FHIRID        *string    `db:"fhir_id" json:"fhir_id,omitempty"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterType *string    `db:"encounter_type" json:"encounter_type,omitempty"`
	StartTime     time.Time  `db:"start_time" json:"start_time"`
	EndTime       *time.Time `db:"end_time" json:"end_time,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate normalizes e in place: optional strings are trimmed and times moved to UTC.
func (e *Encounter) Validate() error {
	if err := validate.Optional("fhir_id", &e.FHIRID, maxFHIRID); err != nil {
		return err
	}
	if err := validate.Optional("encounter_type", &e.EncounterType, maxType); err != nil {
		return err
	}
	if err := validate.Timestamp("start_time", &e.StartTime); err != nil {
		return err
	}
	validate.OptionalTimestamp(&e.EndTime)
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return apperr.Validation("end_time must not be before start_time")
	}
	return nil
}
