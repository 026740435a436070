package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElo_Update(t *testing.T) {
	elo := NewElo(DefaultKFactor)

	tests := []struct {
		name     string
		ratingA  int
		ratingB  int
		scoreA   int
		scoreB   int
		wantA    int
		wantB    int
		outcomeA float64
		outcomeB float64
	}{
		{
			name:    "equal ratings, A wins",
			ratingA: 1000, ratingB: 1000,
			scoreA: 10, scoreB: 3,
			wantA: 1016, wantB: 984,
			outcomeA: Win, outcomeB: Loss,
		},
		{
			name:    "equal ratings, B wins",
			ratingA: 1000, ratingB: 1000,
			scoreA: 2, scoreB: 5,
			wantA: 984, wantB: 1016,
			outcomeA: Loss, outcomeB: Win,
		},
		{
			name:    "equal ratings draw",
			ratingA: 1000, ratingB: 1000,
			scoreA: 4, scoreB: 4,
			wantA: 1000, wantB: 1000,
			outcomeA: Draw, outcomeB: Draw,
		},
		{
			// expected A = 1/(1+10^(200/400)) = 0.2402; 32*0.7598 = 24.31
			name:    "underdog wins",
			ratingA: 1000, ratingB: 1200,
			scoreA: 3, scoreB: 1,
			wantA: 1024, wantB: 1176,
			outcomeA: Win, outcomeB: Loss,
		},
		{
			// 32*(0.5-0.7598) = -8.31 -> -8; 32*(0.5-0.2402) = 8.31 -> 8
			name:    "favourite draws",
			ratingA: 1200, ratingB: 1000,
			scoreA: 0, scoreB: 0,
			wantA: 1192, wantB: 1008,
			outcomeA: Draw, outcomeB: Draw,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := elo.Update(tt.ratingA, tt.ratingB, tt.scoreA, tt.scoreB)
			assert.Equal(t, tt.wantA, res.NewRatingA)
			assert.Equal(t, tt.wantB, res.NewRatingB)
			assert.Equal(t, tt.outcomeA, res.OutcomeA)
			assert.Equal(t, tt.outcomeB, res.OutcomeB)
		})
	}
}

func TestElo_ChangesCancelUpToRounding(t *testing.T) {
	elo := NewElo(DefaultKFactor)
	scores := [][2]int{{1, 0}, {0, 1}, {2, 2}}

	for ra := 600; ra <= 2000; ra += 137 {
		for rb := 600; rb <= 2000; rb += 151 {
			for _, s := range scores {
				res := elo.Update(ra, rb, s[0], s[1])
				sum := (res.NewRatingA - ra) + (res.NewRatingB - rb)
				assert.LessOrEqual(t, sum, 1, "ra=%d rb=%d score=%v", ra, rb, s)
				assert.GreaterOrEqual(t, sum, -1, "ra=%d rb=%d score=%v", ra, rb, s)
			}
		}
	}
}

func TestExpected_Symmetric(t *testing.T) {
	for _, pair := range [][2]int{{1000, 1000}, {1000, 1400}, {2200, 900}} {
		sum := Expected(pair[0], pair[1]) + Expected(pair[1], pair[0])
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.InDelta(t, 0.5, Expected(1000, 1000), 1e-12)
}

func TestNewElo_DefaultsKFactor(t *testing.T) {
	assert.Equal(t, DefaultKFactor, NewElo(0).KFactor())
	assert.Equal(t, 16.0, NewElo(16).KFactor())
}
