package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BenchmarkAlgorithm selects how a benchmark produces its prediction values.
type BenchmarkAlgorithm string

const (
	AlgorithmStatic BenchmarkAlgorithm = "static"
	AlgorithmMean   BenchmarkAlgorithm = "mean"
	AlgorithmMedian BenchmarkAlgorithm = "median"
	AlgorithmRandom BenchmarkAlgorithm = "random"
)

// Benchmark is a non-human predictor shown on the leaderboard as a reference
// point. Parameter requirements depend on the algorithm: static needs
// StaticValue and forbids the range, mean/median forbid both, random needs
// RangeStart <= RangeEnd.
//
// Benchmarks are excluded from the bonus unless CanReceiveBonus is set, so by
// default they compete on raw margin only.
type Benchmark struct {
	ID              int                `json:"id" db:"id"`
	TournamentID    int                `json:"tournament_id" db:"tournament_id"`
	Name            string             `json:"name" db:"name"`
	Algorithm       BenchmarkAlgorithm `json:"algorithm" db:"algorithm"`
	StaticValue     *decimal.Decimal   `json:"static_value,omitempty" db:"static_value"`
	RangeStart      *int               `json:"range_start,omitempty" db:"range_start"`
	RangeEnd        *int               `json:"range_end,omitempty" db:"range_end"`
	CanReceiveBonus bool               `json:"can_receive_bonus" db:"can_receive_bonus"`
	Score           *decimal.Decimal   `json:"score,omitempty" db:"score"`
	MarginPerMatch  *decimal.Decimal   `json:"margin_per_match,omitempty" db:"margin_per_match"`
}

func (b *Benchmark) String() string {
	switch b.Algorithm {
	case AlgorithmStatic:
		if b.StaticValue != nil {
			return fmt.Sprintf("STATIC(%s) %s", b.StaticValue.String(), b.Name)
		}
		return fmt.Sprintf("STATIC %s", b.Name)
	case AlgorithmRandom:
		if b.RangeStart != nil && b.RangeEnd != nil {
			return fmt.Sprintf("RANDOM(%d, %d) %s", *b.RangeStart, *b.RangeEnd, b.Name)
		}
		return fmt.Sprintf("RANDOM %s", b.Name)
	case AlgorithmMean:
		return fmt.Sprintf("MEAN %s", b.Name)
	case AlgorithmMedian:
		return fmt.Sprintf("MEDIAN %s", b.Name)
	}
	return fmt.Sprintf("OTHER %s", b.Name)
}
