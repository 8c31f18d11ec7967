package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TournamentState represents the lifecycle states, matching the ENUM in the DB.
// States only ever move forward.
type TournamentState string

const (
	StatePending  TournamentState = "pending"
	StateActive   TournamentState = "active"
	StateFinished TournamentState = "finished"
	StateArchived TournamentState = "archived"
)

// Tournament is one competition over a set of matches. Bonus is the score
// reduction for predicting the right winner, DrawBonus the multiplier applied
// when the actual result is a draw. Lower participant scores are better.
type Tournament struct {
	ID              int             `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Slug            string          `json:"slug" db:"slug"`
	SportID         int             `json:"sport_id" db:"sport_id"`
	State           TournamentState `json:"state" db:"state"`
	Bonus           decimal.Decimal `json:"bonus" db:"bonus"`
	DrawBonus       decimal.Decimal `json:"draw_bonus" db:"draw_bonus"`
	Year            int             `json:"year" db:"year"`
	WinnerID        *int            `json:"winner_id,omitempty" db:"winner_participant_id"`
	AdditionalRules *string         `json:"additional_rules,omitempty" db:"additional_rules"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	Sport  *Sport       `json:"sport,omitempty" db:"-"`
	Winner *Participant `json:"winner,omitempty" db:"-"`
}

// IsClosed reports whether the tournament no longer accepts predictions or
// results.
func (t *Tournament) IsClosed() bool {
	return t.State == StateFinished || t.State == StateArchived
}

// DrawBonusValue is the effective bonus applied to an exactly-predicted draw.
func (t *Tournament) DrawBonusValue() decimal.Decimal {
	return t.Bonus.Mul(t.DrawBonus)
}
