package models

import "github.com/shopspring/decimal"

// PredictorKind tags a leaderboard row's origin.
type PredictorKind string

const (
	PredictorParticipant PredictorKind = "participant"
	PredictorBenchmark   PredictorKind = "benchmark"
)

// LeaderboardEntry is one row of the read-side standings table, ordered by
// Score ascending (lower is better). Recent holds the predictor's latest
// scored predictions, newest first.
type LeaderboardEntry struct {
	Kind           PredictorKind         `json:"kind"`
	PredictorID    int                   `json:"predictor_id"`
	Name           string                `json:"name"`
	Score          *decimal.Decimal      `json:"score,omitempty"`
	MarginPerMatch *decimal.Decimal      `json:"margin_per_match,omitempty"`
	Recent         []Prediction          `json:"recent,omitempty"`
	RecentBench    []BenchmarkPrediction `json:"recent_benchmark,omitempty"`
}

// MatchPredictionRow is one row of a match's prediction list, optionally
// merged across participants and benchmarks and sorted by score.
type MatchPredictionRow struct {
	Kind    PredictorKind    `json:"kind"`
	Name    string           `json:"name"`
	Value   decimal.Decimal  `json:"prediction"`
	Score   *decimal.Decimal `json:"score,omitempty"`
	Margin  *decimal.Decimal `json:"margin,omitempty"`
	Correct *bool            `json:"correct,omitempty"`
	Late    bool             `json:"late"`
}
