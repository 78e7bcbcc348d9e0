package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// SQLSTATE codes the record store reacts to.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
	stringTooLong       = "22001"
	invalidDatetime     = "22007"
)

// TranslateError maps driver errors onto the application taxonomy. entity
// names the row being read or written; parent names the row a foreign key
// points at. Unknown errors become internal errors carrying the cause.
func TranslateError(err error, entity, parent string) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			conflict := apperr.Conflict("%s already exists", entity)
			conflict.Cause = err
			return conflict
		case foreignKeyViolation:
			return &apperr.Error{Kind: apperr.KindNotFound, Message: parent + " not found", Cause: err}
		case checkViolation, notNullViolation, stringTooLong, invalidDatetime:
			return &apperr.Error{Kind: apperr.KindValidation, Message: entity + " violates a value constraint", Cause: err}
		}
	}

	return apperr.Internal(err)
}
