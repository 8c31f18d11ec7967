package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Participant is a user's entry in one tournament, unique per (tournament,
// user). Score and MarginPerMatch are derived from the participant's scored
// predictions and recomputed after every result; they are never edited by
// hand.
type Participant struct {
	ID             int              `json:"id" db:"id"`
	TournamentID   int              `json:"tournament_id" db:"tournament_id"`
	UserID         int              `json:"user_id" db:"user_id"`
	Score          *decimal.Decimal `json:"score,omitempty" db:"score"`
	MarginPerMatch *decimal.Decimal `json:"margin_per_match,omitempty" db:"margin_per_match"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}

// DisplayName falls back to a numbered placeholder when the user row is not
// loaded.
func (p *Participant) DisplayName() string {
	if p.User != nil {
		return p.User.DisplayName()
	}
	return "Participant " + strconv.Itoa(p.ID)
}
