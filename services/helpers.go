package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/repositories"
)

// runInTx runs fn inside a transaction on db, passing it as the repositories'
// executor. A nil db runs fn directly with a nil executor, which makes every
// repository fall back to its own handle; in-memory fakes rely on this.
func runInTx(ctx context.Context, db *sql.DB, fn func(exec repositories.SQLExecutor) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ExampleScore is one row of the rule explanation shown to joining users.
type ExampleScore struct {
	Margin string
	Score  decimal.Decimal
}

// ExampleScores renders the worked scoring examples for a tournament's bonus
// settings: three correct-winner margins and a four-match weekend that
// includes an exact draw.
func ExampleScores(bonus, drawBonus decimal.Decimal) []ExampleScore {
	weekend := decimal.NewFromFloat(19.5).
		Sub(bonus.Mul(decimal.NewFromInt(3))).
		Sub(bonus.Mul(drawBonus))
	return []ExampleScore{
		{Margin: "1", Score: decimal.NewFromInt(1).Sub(bonus)},
		{Margin: "2", Score: decimal.NewFromInt(2).Sub(bonus)},
		{Margin: "0.5", Score: decimal.NewFromFloat(0.5).Sub(bonus)},
		{Margin: "19.5 over four matches", Score: weekend},
	}
}
