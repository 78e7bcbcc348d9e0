package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/db"
)

// DefaultVitalsTolerance widens an encounter's span when placing a vital sign in it.
const DefaultVitalsTolerance = time.Hour

type Service struct {
	repo      Repository
	tx        db.Transactor
	obs       db.Observer
	tolerance time.Duration
	now       func() time.Time
}

func NewService(repo Repository, tx db.Transactor, tolerance time.Duration) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		obs:       db.NopObserver{},
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WithObserver reports each store operation to o.
func (s *Service) WithObserver(o db.Observer) *Service {
	s.obs = o
	return s
}

func (s *Service) observe(entity, op string, start time.Time, err *error) {
	s.obs.ObserveStore(entity, op, time.Since(start), *err)
}

// requireEncounter is the not_found check shared by the list operations.
func (s *Service) requireEncounter(ctx context.Context, encounterID uuid.UUID) error {
	exists, err := s.repo.EncounterExists(ctx, encounterID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(parent)
	}
	return nil
}

// keepEncounter enforces that a child never moves to another encounter.
func keepEncounter(requested *uuid.UUID, current uuid.UUID) error {
	if *requested != uuid.Nil && *requested != current {
		return apperr.Validation("encounter_id cannot be changed")
	}
	*requested = current
	return nil
}

func (s *Service) checkRecordedAt(span *Span, recordedAt time.Time) error {
	if !span.Covers(recordedAt, s.tolerance, s.now().UTC()) {
		return apperr.Validation("recorded_at must fall within the encounter period")
	}
	return nil
}

// -- Vital signs --

// CreateVitalSign locks the encounter, checks that recorded_at falls within its
// span and inserts v.
func (s *Service) CreateVitalSign(ctx context.Context, v *VitalSign) (err error) {
	defer s.observe(entityVitalSign, "create", time.Now(), &err)
	if v.EncounterID == uuid.Nil {
		return apperr.Validation("encounter_id is required")
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		span, err := s.repo.LockEncounter(ctx, v.EncounterID)
		if err != nil {
			return err
		}
		if err := s.checkRecordedAt(span, v.RecordedAt); err != nil {
			return err
		}
		return s.repo.CreateVitalSign(ctx, v)
	})
}

func (s *Service) GetVitalSign(ctx context.Context, id uuid.UUID) (v *VitalSign, err error) {
	defer s.observe(entityVitalSign, "get", time.Now(), &err)
	return s.repo.GetVitalSign(ctx, id)
}

func (s *Service) UpdateVitalSign(ctx context.Context, v *VitalSign) (err error) {
	defer s.observe(entityVitalSign, "update", time.Now(), &err)
	if err := v.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetVitalSign(ctx, v.ID)
		if err != nil {
			return err
		}
		if err := keepEncounter(&v.EncounterID, current.EncounterID); err != nil {
			return err
		}
		span, err := s.repo.LockEncounter(ctx, v.EncounterID)
		if err != nil {
			return err
		}
		if err := s.checkRecordedAt(span, v.RecordedAt); err != nil {
			return err
		}
		return s.repo.UpdateVitalSign(ctx, v)
	})
}

func (s *Service) DeleteVitalSign(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe(entityVitalSign, "delete", time.Now(), &err)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.DeleteVitalSign(ctx, id)
	})
}

func (s *Service) ListVitalSigns(ctx context.Context, encounterID uuid.UUID, limit, offset int) (items []*VitalSign, total int, err error) {
	defer s.observe(entityVitalSign, "list", time.Now(), &err)
	if err := s.requireEncounter(ctx, encounterID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListVitalSigns(ctx, encounterID, limit, offset)
}

// -- Diagnoses --

func (s *Service) CreateDiagnosis(ctx context.Context, d *Diagnosis) (err error) {
	defer s.observe(entityDiagnosis, "create", time.Now(), &err)
	if d.EncounterID == uuid.Nil {
		return apperr.Validation("encounter_id is required")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockEncounter(ctx, d.EncounterID); err != nil {
			return err
		}
		return s.repo.CreateDiagnosis(ctx, d)
	})
}

func (s *Service) GetDiagnosis(ctx context.Context, id uuid.UUID) (d *Diagnosis, err error) {
	defer s.observe(entityDiagnosis, "get", time.Now(), &err)
	return s.repo.GetDiagnosis(ctx, id)
}

func (s *Service) UpdateDiagnosis(ctx context.Context, d *Diagnosis) (err error) {
	defer s.observe(entityDiagnosis, "update", time.Now(), &err)
	if err := d.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetDiagnosis(ctx, d.ID)
		if err != nil {
			return err
		}
		if err := keepEncounter(&d.EncounterID, current.EncounterID); err != nil {
			return err
		}
		return s.repo.UpdateDiagnosis(ctx, d)
	})
}

func (s *Service) DeleteDiagnosis(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe(entityDiagnosis, "delete", time.Now(), &err)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.DeleteDiagnosis(ctx, id)
	})
}

func (s *Service) ListDiagnoses(ctx context.Context, encounterID uuid.UUID, limit, offset int) (items []*Diagnosis, total int, err error) {
	defer s.observe(entityDiagnosis, "list", time.Now(), &err)
	if err := s.requireEncounter(ctx, encounterID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListDiagnoses(ctx, encounterID, limit, offset)
}

// -- Treatments --

func (s *Service) CreateTreatment(ctx context.Context, t *Treatment) (err error) {
	defer s.observe(entityTreatment, "create", time.Now(), &err)
	if t.EncounterID == uuid.Nil {
		return apperr.Validation("encounter_id is required")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockEncounter(ctx, t.EncounterID); err != nil {
			return err
		}
		return s.repo.CreateTreatment(ctx, t)
	})
}

func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (t *Treatment, err error) {
	defer s.observe(entityTreatment, "get", time.Now(), &err)
	return s.repo.GetTreatment(ctx, id)
}

func (s *Service) UpdateTreatment(ctx context.Context, t *Treatment) (err error) {
	defer s.observe(entityTreatment, "update", time.Now(), &err)
	if err := t.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetTreatment(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := keepEncounter(&t.EncounterID, current.EncounterID); err != nil {
			return err
		}
		return s.repo.UpdateTreatment(ctx, t)
	})
}

func (s *Service) DeleteTreatment(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe(entityTreatment, "delete", time.Now(), &err)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.DeleteTreatment(ctx, id)
	})
}

func (s *Service) ListTreatments(ctx context.Context, encounterID uuid.UUID, limit, offset int) (items []*Treatment, total int, err error) {
	defer s.observe(entityTreatment, "list", time.Now(), &err)
	if err := s.requireEncounter(ctx, encounterID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListTreatments(ctx, encounterID, limit, offset)
}
