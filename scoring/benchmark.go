package scoring

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/models"
)

var half = decimal.NewFromFloat(0.5)

// Mean returns the arithmetic mean of values, snapped to 0 when its absolute
// value is below 0.5 so the crowd benchmark predicts a draw rather than a
// fractional near-draw. An empty slice means 0.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(values))))
	if mean.Abs().LessThan(half) {
		return decimal.Zero
	}
	return mean
}

// Median returns the median of values: the middle element for an odd count,
// the mean of the two middle elements for an even count, 0 for an empty
// slice. The input is not modified.
func Median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// RandomInRange returns a uniform random integer value in [start, end],
// both bounds inclusive.
func RandomInRange(start, end int) decimal.Decimal {
	if start > end {
		start, end = end, start
	}
	return decimal.NewFromInt(int64(start + rand.Intn(end-start+1)))
}

// BenchmarkValue computes the value a benchmark predicts for a match, given
// the non-late participant prediction values for that match.
func BenchmarkValue(b *models.Benchmark, participantValues []decimal.Decimal) (decimal.Decimal, error) {
	switch b.Algorithm {
	case models.AlgorithmStatic:
		if b.StaticValue == nil {
			return decimal.Zero, fmt.Errorf("benchmark %d: static algorithm without static value", b.ID)
		}
		return *b.StaticValue, nil
	case models.AlgorithmMean:
		return Mean(participantValues), nil
	case models.AlgorithmMedian:
		return Median(participantValues), nil
	case models.AlgorithmRandom:
		if b.RangeStart == nil || b.RangeEnd == nil {
			return decimal.Zero, fmt.Errorf("benchmark %d: random algorithm without range", b.ID)
		}
		return RandomInRange(*b.RangeStart, *b.RangeEnd), nil
	default:
		return decimal.Zero, fmt.Errorf("benchmark %d: unknown algorithm %q", b.ID, b.Algorithm)
	}
}
