package patient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of Date.
const DateLayout = "2006-01-02"

// Genders accepted on a patient record.
var Genders = map[string]bool{"male": true, "female": true, "other": true, "unknown": true}

// Date is a calendar day without a time of day. It maps to a DATE column and
// encodes as "2006-01-02".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts a plain date or an RFC 3339 timestamp, keeping only the day.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date must be formatted as YYYY-MM-DD")
	}
	*d = NewDate(t.Year(), t.Month(), t.Day())
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FHIRID      *string   `db:"fhir_id" json:"fhir_id,omitempty"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth Date      `db:"date_of_birth" json:"date_of_birth"`
	Gender      *string   `db:"gender" json:"gender,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
