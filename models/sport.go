package models

// Sport is the owning scope for teams and tournaments. ScoringUnit and
// MatchStartVerb are presentation hints for rendering collaborators
// ("point"/"Kick Off" for football, "run"/"First Ball" for cricket, ...).
type Sport struct {
	ID             int    `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	ScoringUnit    string `json:"scoring_unit" db:"scoring_unit"`
	MatchStartVerb string `json:"match_start_verb" db:"match_start_verb"`
}
