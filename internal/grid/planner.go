// Package grid computes the price ladder the bot rests orders on.
package grid

import "tradeogre-grid-bot-go/internal/models"

// Generate returns count evenly spaced, strictly ascending price
// levels with the first equal to lower and the last equal to upper.
//
// A count of 1 degenerates to the single level [lower]. Violated
// preconditions (count < 1, non-positive bounds, upper <= lower) yield
// nil; callers must treat nil as "grid generation failed" and abort
// the placement attempt rather than proceeding with zero orders.
func Generate(lower, upper float64, count int) []models.GridLevel {
	if count < 1 || lower <= 0 {
		return nil
	}
	if count == 1 {
		return []models.GridLevel{{Index: 0, Price: lower}}
	}
	if upper <= lower {
		return nil
	}

	step := (upper - lower) / float64(count-1)
	levels := make([]models.GridLevel, count)
	for i := 0; i < count; i++ {
		levels[i] = models.GridLevel{Index: i, Price: lower + float64(i)*step}
	}
	// Pin the last level to the exact upper bound; accumulated float
	// error must not leak past the configured ceiling.
	levels[count-1].Price = upper
	return levels
}
