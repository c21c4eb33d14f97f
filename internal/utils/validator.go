package utils

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/studypulse/arena-service/internal/errors"
	"github.com/studypulse/arena-service/internal/models"
)

// Validator wraps go-playground/validator with the domain's custom rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("examtype", validateExamType)
	_ = v.RegisterValidation("difficulty", validateDifficulty)

	return &Validator{validate: v}
}

// Validate checks struct tags and converts failures to the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if converted := apperrors.ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

func validateExamType(fl validator.FieldLevel) bool {
	switch models.ExamType(fl.Field().String()) {
	case models.ExamIELTS, models.ExamSAT, models.ExamTOEFL, models.ExamCEFR:
		return true
	}
	return false
}

func validateDifficulty(fl validator.FieldLevel) bool {
	switch models.DifficultyLevel(fl.Field().String()) {
	case models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced:
		return true
	}
	return false
}
