//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/caretrail/internal/domain/clinical"
	"github.com/ehr/caretrail/internal/domain/encounter"
	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/db"
)

// holdTx runs first inside a transaction and keeps that transaction open
// until the returned commit func is called. commit returns the WithinTx error.
func holdTx(t *testing.T, ctx context.Context, tx db.Transactor, first func(ctx context.Context) error) (commit func() error) {
	t.Helper()
	ready := make(chan error, 1)
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- tx.WithinTx(ctx, func(ctx context.Context) error {
			err := first(ctx)
			ready <- err
			if err != nil {
				return err
			}
			<-release
			return nil
		})
	}()

	if err := <-ready; err != nil {
		t.Fatalf("first transaction: %v", err)
	}
	return func() error {
		close(release)
		return <-done
	}
}

// runBlocked starts fn in a goroutine and returns once Postgres reports it
// waiting on a row lock.
func runBlocked(t *testing.T, ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-result:
			t.Fatalf("expected second transaction to wait for the lock, it returned %v", err)
		default:
		}
		var waiting int
		err := globalDB.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM pg_stat_activity WHERE datname = current_database() AND wait_event_type = 'Lock'`,
		).Scan(&waiting)
		if err != nil {
			t.Fatalf("query pg_stat_activity: %v", err)
		}
		if waiting > 0 {
			return result
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("second transaction never blocked on the lock")
	return nil
}

func countOrphans(t *testing.T, ctx context.Context) int {
	t.Helper()
	var n int
	err := globalDB.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM encounters e WHERE NOT EXISTS (SELECT 1 FROM patients p WHERE p.id = e.patient_id)) +
			(SELECT COUNT(*) FROM vital_signs v WHERE NOT EXISTS (SELECT 1 FROM encounters e WHERE e.id = v.encounter_id)) +
			(SELECT COUNT(*) FROM diagnoses d WHERE NOT EXISTS (SELECT 1 FROM encounters e WHERE e.id = d.encounter_id)) +
			(SELECT COUNT(*) FROM treatments t WHERE NOT EXISTS (SELECT 1 FROM encounters e WHERE e.id = t.encounter_id))`,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	return n
}

func countEncounters(t *testing.T, ctx context.Context, patientID uuid.UUID) int {
	t.Helper()
	var n int
	if err := globalDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE patient_id = $1`, patientID).Scan(&n); err != nil {
		t.Fatalf("count encounters: %v", err)
	}
	return n
}

func TestConcurrent_DeletePatientBeforeCreateEncounter(t *testing.T) {
	ctx := context.Background()
	resetDB(t, ctx)
	svc := newServices()
	p := createTestPatient(t, ctx, svc, "Leslie", "Lamport")

	commit := holdTx(t, ctx, svc.tx, func(ctx context.Context) error {
		return svc.patients.DeletePatient(ctx, p.ID)
	})
	created := runBlocked(t, ctx, func(ctx context.Context) error {
		return svc.encounters.CreateEncounter(ctx, &encounter.Encounter{PatientID: p.ID, StartTime: time.Now()})
	})
	if err := commit(); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}

	if err := <-created; apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected create to fail with not_found once the delete committed, got %v", err)
	}
	if n := countEncounters(t, ctx, p.ID); n != 0 {
		t.Errorf("expected no encounters for the deleted patient, got %d", n)
	}
	if n := countOrphans(t, ctx); n != 0 {
		t.Errorf("expected no orphan rows, got %d", n)
	}
}

func TestConcurrent_CreateEncounterBeforeDeletePatient(t *testing.T) {
	ctx := context.Background()
	resetDB(t, ctx)
	svc := newServices()
	p := createTestPatient(t, ctx, svc, "Niklaus", "Wirth")

	enc := &encounter.Encounter{PatientID: p.ID, StartTime: time.Now()}
	commit := holdTx(t, ctx, svc.tx, func(ctx context.Context) error {
		return svc.encounters.CreateEncounter(ctx, enc)
	})
	deleted := runBlocked(t, ctx, func(ctx context.Context) error {
		return svc.patients.DeletePatient(ctx, p.ID)
	})
	if err := commit(); err != nil {
		t.Fatalf("CreateEncounter: %v", err)
	}

	if err := <-deleted; err != nil {
		t.Fatalf("expected delete to succeed after the create committed, got %v", err)
	}
	if _, err := svc.encounters.GetEncounter(ctx, enc.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected the new encounter removed by cascade, got %v", err)
	}
	if n := countOrphans(t, ctx); n != 0 {
		t.Errorf("expected no orphan rows, got %d", n)
	}
}

func TestConcurrent_DeleteEncounterBeforeCreateVitalSign(t *testing.T) {
	ctx := context.Background()
	resetDB(t, ctx)
	svc := newServices()
	p := createTestPatient(t, ctx, svc, "John", "Backus")
	enc := createTestEncounter(t, ctx, svc, p.ID)

	commit := holdTx(t, ctx, svc.tx, func(ctx context.Context) error {
		return svc.encounters.DeleteEncounter(ctx, enc.ID)
	})
	created := runBlocked(t, ctx, func(ctx context.Context) error {
		return svc.clinical.CreateVitalSign(ctx, &clinical.VitalSign{
			EncounterID: enc.ID, RecordedAt: time.Now(), VitalType: "heart_rate", Value: "80",
		})
	})
	if err := commit(); err != nil {
		t.Fatalf("DeleteEncounter: %v", err)
	}

	if err := <-created; apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected create to fail with not_found once the delete committed, got %v", err)
	}
	if n := countOrphans(t, ctx); n != 0 {
		t.Errorf("expected no orphan rows, got %d", n)
	}
}

func TestConcurrent_CreateVitalSignBeforeDeleteEncounter(t *testing.T) {
	ctx := context.Background()
	resetDB(t, ctx)
	svc := newServices()
	p := createTestPatient(t, ctx, svc, "Tony", "Hoare")
	enc := createTestEncounter(t, ctx, svc, p.ID)

	v := &clinical.VitalSign{EncounterID: enc.ID, RecordedAt: time.Now(), VitalType: "heart_rate", Value: "64"}
	commit := holdTx(t, ctx, svc.tx, func(ctx context.Context) error {
		return svc.clinical.CreateVitalSign(ctx, v)
	})
	deleted := runBlocked(t, ctx, func(ctx context.Context) error {
		return svc.encounters.DeleteEncounter(ctx, enc.ID)
	})
	if err := commit(); err != nil {
		t.Fatalf("CreateVitalSign: %v", err)
	}

	if err := <-deleted; err != nil {
		t.Fatalf("expected delete to succeed after the create committed, got %v", err)
	}
	if _, err := svc.clinical.GetVitalSign(ctx, v.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected the new vital sign removed by cascade, got %v", err)
	}
	if n := countOrphans(t, ctx); n != 0 {
		t.Errorf("expected no orphan rows, got %d", n)
	}
}

// TestConcurrent_DeleteRacesCreate lets the scheduler pick the order.
// Whatever it picks, the create either fails with not_found or its row is
// removed with the patient.
func TestConcurrent_DeleteRacesCreate(t *testing.T) {
	ctx := context.Background()
	resetDB(t, ctx)
	svc := newServices()

	for i := 0; i < 25; i++ {
		p := createTestPatient(t, ctx, svc, "Race", "Patient")
		enc := createTestEncounter(t, ctx, svc, p.ID)

		var wg sync.WaitGroup
		var deleteErr, encErr, vitalErr error
		wg.Add(3)
		go func() {
			defer wg.Done()
			deleteErr = svc.patients.DeletePatient(ctx, p.ID)
		}()
		go func() {
			defer wg.Done()
			encErr = svc.encounters.CreateEncounter(ctx, &encounter.Encounter{PatientID: p.ID, StartTime: time.Now()})
		}()
		go func() {
			defer wg.Done()
			vitalErr = svc.clinical.CreateVitalSign(ctx, &clinical.VitalSign{
				EncounterID: enc.ID, RecordedAt: time.Now(), VitalType: "spo2", Value: "97",
			})
		}()
		wg.Wait()

		if deleteErr != nil {
			t.Fatalf("round %d: DeletePatient: %v", i, deleteErr)
		}
		if encErr != nil && apperr.KindOf(encErr) != apperr.KindNotFound {
			t.Errorf("round %d: CreateEncounter: expected nil or not_found, got %v", i, encErr)
		}
		if vitalErr != nil && apperr.KindOf(vitalErr) != apperr.KindNotFound {
			t.Errorf("round %d: CreateVitalSign: expected nil or not_found, got %v", i, vitalErr)
		}
		if n := countEncounters(t, ctx, p.ID); n != 0 {
			t.Errorf("round %d: expected no encounters left, got %d", i, n)
		}
	}

	if n := countOrphans(t, ctx); n != 0 {
		t.Errorf("expected no orphan rows, got %d", n)
	}
}
