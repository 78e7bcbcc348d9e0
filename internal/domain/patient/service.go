package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.Transactor
	obs  db.Observer
	now  func() time.Time
}

func NewService(repo Repository, tx db.Transactor) *Service {
	return &Service{repo: repo, tx: tx, obs: db.NopObserver{}, now: time.Now}
}

// WithObserver reports each store operation to o.
func (s *Service) WithObserver(o db.Observer) *Service {
	s.obs = o
	return s
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.obs.ObserveStore(entity, op, time.Since(start), *err)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) (err error) {
	defer s.observe("create", time.Now(), &err)
	if err := p.Validate(s.now()); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (p *Patient, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPatientByFHIRID(ctx context.Context, fhirID string) (p *Patient, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.repo.GetByFHIRID(ctx, fhirID)
}

// UpdatePatient replaces the record identified by p.ID.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) (err error) {
	defer s.observe("update", time.Now(), &err)
	if err := p.Validate(s.now()); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, p)
	})
}

// DeletePatient removes the patient and, through the foreign keys, every
// encounter and clinical record below it.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe("delete", time.Now(), &err)
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) (items []*Patient, total int, err error) {
	defer s.observe("list", time.Now(), &err)
	return s.repo.List(ctx, limit, offset)
}
