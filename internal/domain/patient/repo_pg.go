package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/caretrail/internal/platform/db"
)

const entity = "patient"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, fhir_id, first_name, last_name, date_of_birth, gender,
	address, phone, email, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate patient id: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, fhir_id, first_name, last_name, date_of_birth, gender, address, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		id, p.FHIRID, p.FirstName, p.LastName, p.DateOfBirth.Time, p.Gender, p.Address, p.Phone, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.TranslateError(err, entity, "")
	}
	p.ID = id
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err, entity, "")
	}
	return p, nil
}

func (r *repoPG) GetByFHIRID(ctx context.Context, fhirID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE fhir_id = $1`, fhirID))
	if err != nil {
		return nil, db.TranslateError(err, entity, "")
	}
	return p, nil
}

// Update replaces every mutable column. created_at is left untouched.
func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			fhir_id=$2, first_name=$3, last_name=$4, date_of_birth=$5, gender=$6,
			address=$7, phone=$8, email=$9, updated_at=(NOW() AT TIME ZONE 'UTC')
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FHIRID, p.FirstName, p.LastName, p.DateOfBirth.Time, p.Gender, p.Address, p.Phone, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err, entity, "")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, entity, "")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateError(pgx.ErrNoRows, entity, "")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, entity, "")
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, entity, "")
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, entity, "")
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.TranslateError(err, entity, "")
	}
	return items, total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FHIRID, &p.FirstName, &p.LastName, &p.DateOfBirth.Time, &p.Gender,
		&p.Address, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
