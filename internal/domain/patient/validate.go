package patient

import (
	"net/mail"
	"strings"
	"time"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/validate"
)

// Column widths from the patients table.
const (
	maxFHIRID = 64
	maxName   = 255
	maxPhone  = 64
	maxEmail  = 255
)

// Validate normalizes p in place and checks the rules shared by create and update.
// now bounds the date of birth.
func (p *Patient) Validate(now time.Time) error {
	if err := validate.Optional("fhir_id", &p.FHIRID, maxFHIRID); err != nil {
		return err
	}
	if err := validate.Required("first_name", &p.FirstName, maxName); err != nil {
		return err
	}
	if err := validate.Required("last_name", &p.LastName, maxName); err != nil {
		return err
	}

	if p.DateOfBirth.IsZero() {
		return apperr.Validation("date_of_birth is required")
	}
	p.DateOfBirth = NewDate(p.DateOfBirth.Year(), p.DateOfBirth.Month(), p.DateOfBirth.Day())
	if p.DateOfBirth.After(now.UTC()) {
		return apperr.Validation("date_of_birth must not be in the future")
	}

	if err := validate.Optional("gender", &p.Gender, 0); err != nil {
		return err
	}
	if p.Gender != nil {
		g := strings.ToLower(*p.Gender)
		if !Genders[g] {
			return apperr.Validation("gender must be one of male, female, other, unknown")
		}
		p.Gender = &g
	}

	if err := validate.Optional("address", &p.Address, 0); err != nil {
		return err
	}
	if err := validate.Optional("phone", &p.Phone, maxPhone); err != nil {
		return err
	}
	if err := validate.Optional("email", &p.Email, maxEmail); err != nil {
		return err
	}
	if p.Email != nil {
		addr, err := mail.ParseAddress(*p.Email)
		if err != nil || addr.Address != *p.Email {
			return apperr.Validation("email is not a valid address")
		}
	}
	return nil
}
