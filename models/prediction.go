package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prediction is one user's forecast of a match's score margin, unique per
// (user, match). Value follows the match score sign convention. Score,
// Margin and Correct stay nil until the match has a result; once computed
// they are always consistent with the stored value and the match score.
//
// Late marks a prediction that was synthesized after kick-off because the
// user never submitted one; late predictions never receive the bonus.
type Prediction struct {
	ID      int             `json:"id" db:"id"`
	UserID  int             `json:"user_id" db:"user_id"`
	MatchID int             `json:"match_id" db:"match_id"`
	Value   decimal.Decimal `json:"prediction" db:"prediction"`
	Late    bool            `json:"late" db:"late"`
	Entered time.Time       `json:"entered" db:"entered"`

	Score   *decimal.Decimal `json:"score,omitempty" db:"score"`
	Margin  *decimal.Decimal `json:"margin,omitempty" db:"margin"`
	Correct *bool            `json:"correct,omitempty" db:"correct"`

	User  *User  `json:"user,omitempty" db:"-"`
	Match *Match `json:"match,omitempty" db:"-"`
}

// BenchmarkPrediction mirrors Prediction for benchmark predictors, unique per
// (benchmark, match). Benchmarks have no submission deadline so there is no
// late flag; bonus eligibility comes from the benchmark itself.
type BenchmarkPrediction struct {
	ID          int             `json:"id" db:"id"`
	BenchmarkID int             `json:"benchmark_id" db:"benchmark_id"`
	MatchID     int             `json:"match_id" db:"match_id"`
	Value       decimal.Decimal `json:"prediction" db:"prediction"`

	Score   *decimal.Decimal `json:"score,omitempty" db:"score"`
	Margin  *decimal.Decimal `json:"margin,omitempty" db:"margin"`
	Correct *bool            `json:"correct,omitempty" db:"correct"`

	Benchmark *Benchmark `json:"benchmark,omitempty" db:"-"`
	Match     *Match     `json:"match,omitempty" db:"-"`
}
