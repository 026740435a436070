package rating

import "math"

// Game outcomes from one side's point of view.
const (
	Win  = 1.0
	Draw = 0.5
	Loss = 0.0
)

// DefaultKFactor is the maximum rating change per game.
const DefaultKFactor = 32.0

// Result holds both sides' new ratings and outcomes for one finished game.
type Result struct {
	NewRatingA int
	NewRatingB int
	OutcomeA   float64
	OutcomeB   float64
}

// Elo computes rating updates. The zero value is not usable; use NewElo.
type Elo struct {
	kFactor float64
}

// NewElo returns an Elo engine with the given K factor. Non-positive values fall back
// to DefaultKFactor.
func NewElo(kFactor float64) Elo {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	return Elo{kFactor: kFactor}
}

// KFactor returns the configured K factor.
func (e Elo) KFactor() float64 {
	return e.kFactor
}

// Update rates a finished game. The higher score wins; equal scores draw.
// Each side's change is truncated toward zero independently, so the two changes
// are not guaranteed to cancel exactly.
func (e Elo) Update(ratingA, ratingB, scoreA, scoreB int) Result {
	outcomeA, outcomeB := Outcomes(scoreA, scoreB)

	expectedA := Expected(ratingA, ratingB)
	expectedB := Expected(ratingB, ratingA)

	return Result{
		NewRatingA: ratingA + int(math.Trunc(e.kFactor*(outcomeA-expectedA))),
		NewRatingB: ratingB + int(math.Trunc(e.kFactor*(outcomeB-expectedB))),
		OutcomeA:   outcomeA,
		OutcomeB:   outcomeB,
	}
}

// Outcomes maps a score line to (outcome A, outcome B).
func Outcomes(scoreA, scoreB int) (float64, float64) {
	switch {
	case scoreA > scoreB:
		return Win, Loss
	case scoreA < scoreB:
		return Loss, Win
	default:
		return Draw, Draw
	}
}

// Expected is the expected score of a player rated `rating` against `opponent`:
// 10^(r/400) / (10^(r/400) + 10^(o/400)), computed in the overflow-safe form.
func Expected(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
}
