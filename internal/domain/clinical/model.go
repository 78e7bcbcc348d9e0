package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/validate"
)

// Entity names used in errors and store metrics.
const (
	entityVitalSign = "vital sign"
	entityDiagnosis = "diagnosis"
	entityTreatment = "treatment"
	parent          = "encounter"
)

const (
	maxVitalType = 64
	maxValue     = 64
	maxUnit      = 32
	maxCode      = 16
)

// VitalSign maps to the vital_signs table. Value is free text such as "120/80".
type VitalSign struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID uuid.UUID `db:"encounter_id" json:"encounter_id"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
	VitalType   string    `db:"vital_type" json:"vital_type"`
	Value       string    `db:"value" json:"value"`
	Unit        *string   `db:"unit" json:"unit,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (v *VitalSign) Validate() error {
	if err := validate.Timestamp("recorded_at", &v.RecordedAt); err != nil {
		return err
	}
	if err := validate.Required("vital_type", &v.VitalType, maxVitalType); err != nil {
		return err
	}
	if err := validate.Required("value", &v.Value, maxValue); err != nil {
		return err
	}
	return validate.Optional("unit", &v.Unit, maxUnit)
}

// Diagnosis maps to the diagnoses table.
type Diagnosis struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EncounterID uuid.UUID `db:"encounter_id" json:"encounter_id"`
	ICDCode     string    `db:"icd_code" json:"icd_code"`
	Description *string   `db:"description" json:"description,omitempty"`
	DiagnosedAt time.Time `db:"diagnosed_at" json:"diagnosed_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (d *Diagnosis) Validate() error {
	if err := requireCode("icd_code", &d.ICDCode); err != nil {
		return err
	}
	if err := validate.Optional("description", &d.Description, 0); err != nil {
		return err
	}
	return validate.Timestamp("diagnosed_at", &d.DiagnosedAt)
}

// Treatment maps to the treatments table.
type Treatment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	EncounterID   uuid.UUID `db:"encounter_id" json:"encounter_id"`
	ProcedureCode string    `db:"procedure_code" json:"procedure_code"`
	Description   *string   `db:"description" json:"description,omitempty"`
	PerformedAt   time.Time `db:"performed_at" json:"performed_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

func (t *Treatment) Validate() error {
	if err := requireCode("procedure_code", &t.ProcedureCode); err != nil {
		return err
	}
	if err := validate.Optional("description", &t.Description, 0); err != nil {
		return err
	}
	return validate.Timestamp("performed_at", &t.PerformedAt)
}

// requireCode upper-cases a coding-system code and rejects embedded whitespace.
func requireCode(field string, code *string) error {
	if err := validate.Required(field, code, maxCode); err != nil {
		return err
	}
	if strings.ContainsAny(*code, " \t\r\n") {
		return apperr.Validation("%s must not contain whitespace", field)
	}
	*code = strings.ToUpper(*code)
	return nil
}

// Span is the time range of an encounter. A nil End means the encounter is open.
type Span struct {
	Start time.Time
	End   *time.Time
}

// Covers reports whether t lies in the span widened by tolerance on both
// sides. An open span extends to now.
func (s Span) Covers(t time.Time, tolerance time.Duration, now time.Time) bool {
	end := now
	if s.End != nil {
		end = *s.End
	}
	return !t.Before(s.Start.Add(-tolerance)) && !t.After(end.Add(tolerance))
}
