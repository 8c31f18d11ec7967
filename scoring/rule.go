// Package scoring holds the pure competition arithmetic: the margin/bonus
// score rule and the benchmark prediction algorithms. Nothing here touches
// the database.
package scoring

import "github.com/shopspring/decimal"

// Outcome is the result of scoring one prediction against a played match.
// Score is a penalty metric: lower is better, and an exact prediction earns
// a negative score.
type Outcome struct {
	Score   decimal.Decimal
	Margin  decimal.Decimal
	Correct bool
}

// Score applies the competition rule to a prediction and an actual result.
//
// The margin is always |result - prediction|. The bonus is subtracted when
// the predicted winner was right: fully (score = -bonus) on an exact hit,
// partially (score = margin - bonus) when only the winning side matched.
// A wrong side, or a draw predicted/missed, scores the raw margin.
//
// A draw result (0) uses bonus*drawBonus as the effective bonus and can only
// score as exact or wrong: the same-sign test never matches at zero.
// noBonus zeroes the bonus term (late predictions, bonus-excluded
// benchmarks) without changing margin or correctness; an exact noBonus hit
// therefore scores 0, never negative.
func Score(prediction, result, bonus, drawBonus decimal.Decimal, noBonus bool) Outcome {
	margin := result.Sub(prediction).Abs()

	effectiveBonus := decimal.Zero
	if !noBonus {
		if result.IsZero() {
			effectiveBonus = bonus.Mul(drawBonus)
		} else {
			effectiveBonus = bonus
		}
	}

	switch {
	case prediction.Equal(result):
		return Outcome{Score: effectiveBonus.Neg(), Margin: margin, Correct: true}
	case prediction.Sign() == result.Sign() && result.Sign() != 0:
		return Outcome{Score: margin.Sub(effectiveBonus), Margin: margin, Correct: true}
	default:
		return Outcome{Score: margin, Margin: margin, Correct: false}
	}
}
