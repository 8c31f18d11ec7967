package models

// Team belongs to exactly one sport. Every name field is unique within the
// sport; Code is the 3-letter fallback used by fixture uploads.
type Team struct {
	ID        int     `json:"id" db:"id"`
	SportID   int     `json:"sport_id" db:"sport_id"`
	Name      string  `json:"name" db:"name"`
	Code      string  `json:"code" db:"code"`
	ShortName *string `json:"short_name,omitempty" db:"short_name"`
	FullName  *string `json:"full_name,omitempty" db:"full_name"`
	AltName   *string `json:"alt_name,omitempty" db:"alt_name"`

	Sport *Sport `json:"sport,omitempty" db:"-"`
}
