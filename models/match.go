package models

import "time"

// Match is one fixture inside a tournament. MatchID is the tournament-scoped
// sequential number used by fixture uploads and result entry; ID is the
// database key.
//
// Each side is either a concrete team or a back-reference to the match whose
// winner will fill the slot, never both and never neither. Score is nil until
// the match has been played; positive means home win margin, negative away
// win margin, zero a draw.
type Match struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	MatchID      int       `json:"match_id" db:"match_id"`
	KickOff      time.Time `json:"kick_off" db:"kick_off"`
	HomeTeamID   *int      `json:"home_team_id,omitempty" db:"home_team_id"`
	HomeWinnerOf *int      `json:"home_team_winner_of,omitempty" db:"home_team_winner_of"`
	AwayTeamID   *int      `json:"away_team_id,omitempty" db:"away_team_id"`
	AwayWinnerOf *int      `json:"away_team_winner_of,omitempty" db:"away_team_winner_of"`
	Score        *int      `json:"score,omitempty" db:"score"`
	Postponed    bool      `json:"postponed" db:"postponed"`

	HomeTeam *Team `json:"home_team,omitempty" db:"-"`
	AwayTeam *Team `json:"away_team,omitempty" db:"-"`
}

// HasStarted reports whether the match is past kick-off and not postponed.
// Postponed matches keep their original kick-off time but never count as
// started.
func (m *Match) HasStarted(now time.Time) bool {
	if m.Postponed {
		return false
	}
	return !m.KickOff.After(now)
}

// WinnerTeamID returns the winning side's team reference, or nil when the
// match is unplayed, drawn, or the winning slot is itself still undecided.
func (m *Match) WinnerTeamID() *int {
	if m.Score == nil {
		return nil
	}
	switch {
	case *m.Score > 0:
		return m.HomeTeamID
	case *m.Score < 0:
		return m.AwayTeamID
	default:
		return nil
	}
}
