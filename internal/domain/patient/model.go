package patient

import "time"

// Patient maps to the patients table.
type Patient struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DateOfBirth *string   `db:"date_of_birth" json:"date_of_birth"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HasDateOfBirth reports whether a usable date of birth is on record.
func (p *Patient) HasDateOfBirth() bool {
	return p.DateOfBirth != nil && *p.DateOfBirth != ""
}
