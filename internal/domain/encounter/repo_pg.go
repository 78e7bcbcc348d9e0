package encounter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/caretrail/internal/platform/db"
)

const (
	entity = "encounter"
	parent = "patient"
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

const encCols = `id, fhir_id, patient_id, encounter_type, start_time, end_time, created_at, updated_at`

func (r *repoPG) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	var one int
	err := r.conn(ctx).QueryRow(ctx, `SELECT 1 FROM patients WHERE id = $1 FOR SHARE`, patientID).Scan(&one)
	return db.TranslateError(err, parent, "")
}

func (r *repoPG) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&exists)
	if err != nil {
		return false, db.TranslateError(err, parent, "")
	}
	return exists, nil
}

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate encounter id: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounters (id, fhir_id, patient_id, encounter_type, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		id, enc.FHIRID, enc.PatientID, enc.EncounterType, enc.StartTime, enc.EndTime,
	).Scan(&enc.CreatedAt, &enc.UpdatedAt)
	if err != nil {
		return db.TranslateError(err, entity, parent)
	}
	enc.ID = id
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := scanEnc(r.conn(ctx).QueryRow(ctx, `SELECT `+encCols+` FROM encounters WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, entity, parent)
	}
	return enc, nil
}

// Update replaces the mutable columns. patient_id and created_at are never written.
func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE encounters SET
			fhir_id=$2, encounter_type=$3, start_time=$4, end_time=$5,
			updated_at=(NOW() AT TIME ZONE 'UTC')
		WHERE id = $1
		RETURNING patient_id, created_at, updated_at`,
		enc.ID, enc.FHIRID, enc.EncounterType, enc.StartTime, enc.EndTime,
	).Scan(&enc.PatientID, &enc.CreatedAt, &enc.UpdatedAt)
	return db.TranslateError(err, entity, parent)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, entity, parent)
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, entity, parent)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM encounters WHERE patient_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	defer rows.Close()

	var items []*Encounter
	for rows.Next() {
		enc, err := scanEnc(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, entity, parent)
		}
		items = append(items, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.TranslateError(err, entity, parent)
	}
	return items, total, nil
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var enc Encounter
	err := row.Scan(&enc.ID, &enc.FHIRID, &enc.PatientID, &enc.EncounterType,
		&enc.StartTime, &enc.EndTime, &enc.CreatedAt, &enc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}
