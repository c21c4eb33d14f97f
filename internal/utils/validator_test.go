package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/studypulse/arena-service/internal/errors"
)

type examPayload struct {
	ExamType   string `validate:"required,examtype"`
	Difficulty string `validate:"omitempty,difficulty"`
}

func TestValidator_ExamTypeRule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&examPayload{ExamType: "ielts"}))
	assert.NoError(t, v.Validate(&examPayload{ExamType: "cefr"}))

	err := v.Validate(&examPayload{ExamType: "gre"})
	assert.Error(t, err)
	var verrs apperrors.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestValidator_DifficultyRule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&examPayload{ExamType: "sat", Difficulty: "advanced"}))
	assert.Error(t, v.Validate(&examPayload{ExamType: "sat", Difficulty: "impossible"}))
}
