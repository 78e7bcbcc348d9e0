package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/caretrail/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func newID(entity string) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate %s id: %w", entity, err)
	}
	return id, nil
}

func (r *repoPG) LockEncounter(ctx context.Context, encounterID uuid.UUID) (*Span, error) {
	var s Span
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT start_time, end_time FROM encounters WHERE id = $1 FOR SHARE`, encounterID,
	).Scan(&s.Start, &s.End)
	if err != nil {
		return nil, db.TranslateError(err, parent, "")
	}
	return &s, nil
}

func (r *repoPG) EncounterExists(ctx context.Context, encounterID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM encounters WHERE id = $1)`, encounterID).Scan(&exists)
	if err != nil {
		return false, db.TranslateError(err, parent, "")
	}
	return exists, nil
}

// deleteRow removes one row by id from table, returning not_found when nothing matched.
func (r *repoPG) deleteRow(ctx context.Context, table, entity string, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, entity, parent)
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, entity, parent)
	}
	return nil
}

// listByEncounter pages through the rows of table owned by encounterID in creation order.
func listByEncounter[T any](ctx context.Context, q db.Querier, table, cols, entity string,
	encounterID uuid.UUID, limit, offset int, scan func(pgx.Row) (*T, error)) ([]*T, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE encounter_id = $1`, encounterID).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	rows, err := q.Query(ctx,
		`SELECT `+cols+` FROM `+table+` WHERE encounter_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		encounterID, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	defer rows.Close()

	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, entity, parent)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	return items, total, nil
}

// -- Vital signs --

const vitalCols = `id, encounter_id, recorded_at, vital_type, value, unit, created_at`

func (r *repoPG) CreateVitalSign(ctx context.Context, v *VitalSign) error {
	id, err := newID(entityVitalSign)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_signs (id, encounter_id, recorded_at, vital_type, value, unit)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		id, v.EncounterID, v.RecordedAt, v.VitalType, v.Value, v.Unit,
	).Scan(&v.CreatedAt)
	if err != nil {
		return db.TranslateError(err, entityVitalSign, parent)
	}
	v.ID = id
	return nil
}

func (r *repoPG) GetVitalSign(ctx context.Context, id uuid.UUID) (*VitalSign, error) {
	v, err := scanVitalSign(r.conn(ctx).QueryRow(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, entityVitalSign, parent)
	}
	return v, nil
}

func (r *repoPG) UpdateVitalSign(ctx context.Context, v *VitalSign) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE vital_signs SET recorded_at=$2, vital_type=$3, value=$4, unit=$5
		WHERE id = $1
		RETURNING encounter_id, created_at`,
		v.ID, v.RecordedAt, v.VitalType, v.Value, v.Unit,
	).Scan(&v.EncounterID, &v.CreatedAt)
	return db.TranslateError(err, entityVitalSign, parent)
}

func (r *repoPG) DeleteVitalSign(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, "vital_signs", entityVitalSign, id)
}

func (r *repoPG) ListVitalSigns(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*VitalSign, int, error) {
	return listByEncounter(ctx, r.conn(ctx), "vital_signs", vitalCols, entityVitalSign, encounterID, limit, offset, scanVitalSign)
}

func scanVitalSign(row pgx.Row) (*VitalSign, error) {
	var v VitalSign
	if err := row.Scan(&v.ID, &v.EncounterID, &v.RecordedAt, &v.VitalType, &v.Value, &v.Unit, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// -- Diagnoses --

const diagnosisCols = `id, encounter_id, icd_code, description, diagnosed_at, created_at`

func (r *repoPG) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	id, err := newID(entityDiagnosis)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (id, encounter_id, icd_code, description, diagnosed_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		id, d.EncounterID, d.ICDCode, d.Description, d.DiagnosedAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		return db.TranslateError(err, entityDiagnosis, parent)
	}
	d.ID = id
	return nil
}

func (r *repoPG) GetDiagnosis(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	d, err := scanDiagnosis(r.conn(ctx).QueryRow(ctx, `SELECT `+diagnosisCols+` FROM diagnoses WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, entityDiagnosis, parent)
	}
	return d, nil
}

func (r *repoPG) UpdateDiagnosis(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE diagnoses SET icd_code=$2, description=$3, diagnosed_at=$4
		WHERE id = $1
		RETURNING encounter_id, created_at`,
		d.ID, d.ICDCode, d.Description, d.DiagnosedAt,
	).Scan(&d.EncounterID, &d.CreatedAt)
	return db.TranslateError(err, entityDiagnosis, parent)
}

func (r *repoPG) DeleteDiagnosis(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, "diagnoses", entityDiagnosis, id)
}

func (r *repoPG) ListDiagnoses(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error) {
	return listByEncounter(ctx, r.conn(ctx), "diagnoses", diagnosisCols, entityDiagnosis, encounterID, limit, offset, scanDiagnosis)
}

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	if err := row.Scan(&d.ID, &d.EncounterID, &d.ICDCode, &d.Description, &d.DiagnosedAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Treatments --

const treatmentCols = `id, encounter_id, procedure_code, description, performed_at, created_at`

func (r *repoPG) CreateTreatment(ctx context.Context, t *Treatment) error {
	id, err := newID(entityTreatment)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, encounter_id, procedure_code, description, performed_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		id, t.EncounterID, t.ProcedureCode, t.Description, t.PerformedAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return db.TranslateError(err, entityTreatment, parent)
	}
	t.ID = id
	return nil
}

func (r *repoPG) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	t, err := scanTreatment(r.conn(ctx).QueryRow(ctx, `SELECT `+treatmentCols+` FROM treatments WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, entityTreatment, parent)
	}
	return t, nil
}

func (r *repoPG) UpdateTreatment(ctx context.Context, t *Treatment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatments SET procedure_code=$2, description=$3, performed_at=$4
		WHERE id = $1
		RETURNING encounter_id, created_at`,
		t.ID, t.ProcedureCode, t.Description, t.PerformedAt,
	).Scan(&t.EncounterID, &t.CreatedAt)
	return db.TranslateError(err, entityTreatment, parent)
}

func (r *repoPG) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, "treatments", entityTreatment, id)
}

func (r *repoPG) ListTreatments(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*Treatment, int, error) {
	return listByEncounter(ctx, r.conn(ctx), "treatments", treatmentCols, entityTreatment, encounterID, limit, offset, scanTreatment)
}

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	if err := row.Scan(&t.ID, &t.EncounterID, &t.ProcedureCode, &t.Description, &t.PerformedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
