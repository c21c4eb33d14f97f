package services

import "math"

// Scoring is pure and stateless; every function is safe to call concurrently.

// ScoreAnswer computes the points for one submission. Incorrect answers score
// zero. Correct answers earn basePoints plus a time bonus of up to half the
// base, shrinking linearly with elapsed time. Elapsed time is clamped to
// [0, budgetMs] so late or delayed submissions never go negative and never
// inflate the bonus.
func ScoreAnswer(isCorrect bool, elapsedMs, budgetMs, basePoints int) int {
	if !isCorrect {
		return 0
	}
	if budgetMs <= 0 {
		return basePoints
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > budgetMs {
		elapsedMs = budgetMs
	}
	bonus := int(math.Floor((1 - float64(elapsedMs)/float64(budgetMs)) * float64(basePoints) * 0.5))
	if bonus < 0 {
		bonus = 0
	}
	return basePoints + bonus
}

type bandThreshold struct {
	min  float64
	band float64
}

// IELTS-style band table, checked highest-first. Exact boundary hits resolve
// to the higher tier.
var bandThresholds = []bandThreshold{
	{90, 9.0},
	{85, 8.5},
	{80, 8.0},
	{75, 7.5},
	{70, 7.0},
	{65, 6.5},
	{60, 6.0},
	{55, 5.5},
	{50, 5.0},
	{40, 4.0},
}

// BandScore maps a 0-100 percentage to a 9-point band. Anything below the
// lowest threshold maps to band 3.0; no input in [0,100] is unmapped.
func BandScore(percentage float64) float64 {
	for _, t := range bandThresholds {
		if percentage >= t.min {
			return t.band
		}
	}
	return 3.0
}

type levelThreshold struct {
	min   float64
	level string
}

var levelThresholds = []levelThreshold{
	{90, "C2"},
	{80, "C1"},
	{70, "B2"},
	{55, "B1"},
	{40, "A2"},
}

// LevelFromPercentage maps a 0-100 percentage to a CEFR level, defaulting to
// A1 below the lowest threshold.
func LevelFromPercentage(percentage float64) string {
	for _, t := range levelThresholds {
		if percentage >= t.min {
			return t.level
		}
	}
	return "A1"
}
