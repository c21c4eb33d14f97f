package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAnswer_IncorrectAlwaysZero(t *testing.T) {
	assert.Equal(t, 0, ScoreAnswer(false, 0, 30000, 10))
	assert.Equal(t, 0, ScoreAnswer(false, 30000, 30000, 100))
}

func TestScoreAnswer_TimeBonus(t *testing.T) {
	// 5s of a 30s budget leaves 5/6 of the window: bonus floor(0.8333*5) = 4
	assert.Equal(t, 14, ScoreAnswer(true, 5000, 30000, 10))

	// Instant answer earns the full half-base bonus
	assert.Equal(t, 15, ScoreAnswer(true, 0, 30000, 10))

	// Using the whole budget earns base only
	assert.Equal(t, 10, ScoreAnswer(true, 30000, 30000, 10))
}

func TestScoreAnswer_ClampsElapsed(t *testing.T) {
	// Late submissions clamp to the budget, never below base
	assert.Equal(t, 10, ScoreAnswer(true, 45000, 30000, 10))

	// Negative elapsed clamps to zero, never above base plus half
	assert.Equal(t, 15, ScoreAnswer(true, -100, 30000, 10))
}

func TestScoreAnswer_ZeroBudget(t *testing.T) {
	assert.Equal(t, 10, ScoreAnswer(true, 1000, 0, 10))
}

func TestBandScore_Boundaries(t *testing.T) {
	tests := []struct {
		percentage float64
		band       float64
	}{
		{100, 9.0},
		{90, 9.0}, // exact boundary resolves upward
		{89.9, 8.5},
		{85, 8.5},
		{70, 7.0},
		{50, 5.0},
		{40, 4.0},
		{39.9, 3.0},
		{0, 3.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, BandScore(tt.percentage), "percentage %.1f", tt.percentage)
	}
}

func TestLevelFromPercentage_Boundaries(t *testing.T) {
	tests := []struct {
		percentage float64
		level      string
	}{
		{95, "C2"},
		{90, "C2"},
		{80, "C1"},
		{79.9, "B2"},
		{55, "B1"},
		{40, "A2"},
		{10, "A1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelFromPercentage(tt.percentage), "percentage %.1f", tt.percentage)
	}
}
