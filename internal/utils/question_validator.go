package utils

import (
	"fmt"

	"github.com/studypulse/arena-service/internal/models"
)

// QuestionValidator checks AI-generated question payloads before they are
// persisted or handed to a controller. Generation output is untrusted input.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateTrivia enforces the trivia question invariants: non-empty text, at
// least two options, and a correct option id that references the option list.
func (v *QuestionValidator) ValidateTrivia(text string, options []models.QuestionOption, correctOptionID string, points int) error {
	if text == "" {
		return fmt.Errorf("question text is required")
	}
	if len(options) < 2 {
		return fmt.Errorf("question needs at least 2 options, got %d", len(options))
	}
	if points < 1 || points > 100 {
		return fmt.Errorf("question points must be between 1 and 100, got %d", points)
	}

	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if opt.ID == "" {
			return fmt.Errorf("option id is required")
		}
		if _, dup := seen[opt.ID]; dup {
			return fmt.Errorf("duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = struct{}{}
	}

	if _, ok := seen[correctOptionID]; !ok {
		return fmt.Errorf("correct option id %q not present in options", correctOptionID)
	}
	return nil
}

// ValidateExamQuestion enforces kind-specific invariants on a generated exam
// item.
func (v *QuestionValidator) ValidateExamQuestion(q models.ExamQuestion) error {
	if q.QuestionText == "" {
		return fmt.Errorf("question text is required")
	}
	if !models.ValidQuestionKind(q.Kind) {
		return fmt.Errorf("unsupported question kind: %s", q.Kind)
	}
	if q.Points < 1 {
		return fmt.Errorf("question points must be positive, got %d", q.Points)
	}

	switch q.Kind {
	case models.KindMultipleChoice:
		return v.ValidateTrivia(q.QuestionText, q.Options, q.CorrectAnswer, q.Points)
	case models.KindTrueFalse, models.KindFillBlank:
		if q.CorrectAnswer == "" {
			return fmt.Errorf("%s question requires a correct answer", q.Kind)
		}
	case models.KindEssay, models.KindSpeaking:
		// Open-ended items carry no machine-checkable answer.
	}
	return nil
}

// ValidateOrder checks that order indexes are contiguous from 0 and unique.
func (v *QuestionValidator) ValidateOrder(indexes []int) error {
	seen := make(map[int]struct{}, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(indexes) {
			return fmt.Errorf("order index %d out of range [0,%d)", idx, len(indexes))
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("duplicate order index %d", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}
