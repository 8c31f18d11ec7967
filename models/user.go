package models

import "time"

// User is the identity predictions hang off. Authentication lives outside
// this system; only the fields notification and display-name logic need are
// kept here.
type User struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Mail preferences, honored by notification fan-out.
	CanReceiveEmails    bool `json:"can_receive_emails" db:"can_receive_emails"`
	EmailOnNewTournament bool `json:"email_on_new_tournament" db:"email_on_new_tournament"`
}

// DisplayName prefers the full name, falling back to the username.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
