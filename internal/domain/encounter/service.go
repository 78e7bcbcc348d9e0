package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.Transactor
	obs  db.Observer
}

func NewService(repo Repository, tx db.Transactor) *Service {
	return &Service{repo: repo, tx: tx, obs: db.NopObserver{}}
}

// WithObserver reports each store operation to o.
func (s *Service) WithObserver(o db.Observer) *Service {
	s.obs = o
	return s
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.obs.ObserveStore(entity, op, time.Since(start), *err)
}

// CreateEncounter inserts enc under enc.PatientID. The patient row is share
// locked first so a concurrent patient delete cannot orphan the encounter.
func (s *Service) CreateEncounter(ctx context.Context, enc *Encounter) (err error) {
	defer s.observe("create", time.Now(), &err)
	if enc.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if err := enc.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPatient(ctx, enc.PatientID); err != nil {
			return err
		}
		return s.repo.Create(ctx, enc)
	})
}

func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (enc *Encounter, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.repo.GetByID(ctx, id)
}

// UpdateEncounter replaces the record identified by enc.ID. The owning patient
// cannot change: an empty patient_id keeps the current one, a different one is rejected.
func (s *Service) UpdateEncounter(ctx context.Context, enc *Encounter) (err error) {
	defer s.observe("update", time.Now(), &err)
	if err := enc.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, enc.ID)
		if err != nil {
			return err
		}
		if enc.PatientID != uuid.Nil && enc.PatientID != current.PatientID {
			return apperr.Validation("patient_id cannot be changed")
		}
		enc.PatientID = current.PatientID
		return s.repo.Update(ctx, enc)
	})
}

// DeleteEncounter removes the encounter together with its vital signs,
// diagnoses and treatments.
func (s *Service) DeleteEncounter(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe("delete", time.Now(), &err)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

// ListEncountersByPatient returns the patient's encounters in creation order.
// An unknown patient is not_found; a patient without encounters yields an empty list.
func (s *Service) ListEncountersByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) (items []*Encounter, total int, err error) {
	defer s.observe("list", time.Now(), &err)
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, apperr.NotFound(parent)
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
