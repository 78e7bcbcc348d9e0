// Package validate holds the field checks shared by the record services.
// Every failure is an apperr validation error naming the field.
package validate

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// Required trims *s in place and fails when it is empty or longer than max runes.
func Required(field string, s *string, max int) error {
	*s = strings.TrimSpace(*s)
	if *s == "" {
		return apperr.Validation("%s is required", field)
	}
	return maxLen(field, *s, max)
}

// Optional trims *s in place, replaces a blank value with nil and enforces max.
func Optional(field string, s **string, max int) error {
	if *s == nil {
		return nil
	}
	v := strings.TrimSpace(**s)
	if v == "" {
		*s = nil
		return nil
	}
	*s = &v
	return maxLen(field, v, max)
}

func maxLen(field, s string, max int) error {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return apperr.Validation("%s must be at most %d characters", field, max)
	}
	return nil
}

// Timestamp requires t to be set and normalizes it to UTC.
func Timestamp(field string, t *time.Time) error {
	if t.IsZero() {
		return apperr.Validation("%s is required", field)
	}
	*t = t.UTC()
	return nil
}

// OptionalTimestamp normalizes a non-nil *t to UTC.
func OptionalTimestamp(t **time.Time) {
	if *t == nil {
		return
	}
	if (*t).IsZero() {
		*t = nil
		return
	}
	u := (*t).UTC()
	*t = &u
}
