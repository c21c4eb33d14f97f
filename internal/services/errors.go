package services

import (
	"errors"

	apperrors "github.com/studypulse/arena-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Arena specific errors
	ErrSessionNotFound     = errors.New("arena session not found")
	ErrSessionNotJoinable  = errors.New("arena session is not accepting participants")
	ErrSessionFull         = errors.New("arena session has reached max participants")
	ErrSessionNotActive    = errors.New("arena session is not active")
	ErrSessionNotStartable = errors.New("arena session has no questions yet")
	ErrNotHost             = errors.New("only the session host may perform this action")
	ErrAlreadyAnswered     = errors.New("participant already answered this question")
	ErrNoSuchQuestion      = errors.New("question is not the current question")
	ErrParticipantNotFound = errors.New("participant has not joined this session")

	// Duel specific errors
	ErrDuelNotFound        = errors.New("duel not found")
	ErrDuelNotJoinable     = errors.New("duel is not waiting for an opponent")
	ErrDuelAlreadyTaken    = errors.New("duel already has an opponent")
	ErrDuelSelfAccept      = errors.New("challenger cannot accept their own duel")
	ErrDuelNotActive       = errors.New("duel is not active")
	ErrRoundNotFound       = errors.New("duel round not found")
	ErrSeatAlreadyAnswered = errors.New("seat already answered this round")
	ErrNotDuelParticipant  = errors.New("user occupies no seat in this duel")
	ErrSpectatorOnly       = errors.New("duel participants cannot vote")

	// Mock exam specific errors
	ErrExamNotGenerated   = errors.New("no exam generated yet")
	ErrExamNotInProgress  = errors.New("exam is not in progress")
	ErrExamNotCompleted   = errors.New("exam is not completed")
	ErrExamAlreadyStarted = errors.New("exam already started")
	ErrUnknownExamType    = errors.New("unknown exam type")
)

// ===== ERROR TAXONOMY =====

// Shared taxonomy types live in the errors package so collaborator clients can
// raise them without importing services.
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors
type ConflictError = apperrors.ConflictError
type CollaboratorError = apperrors.CollaboratorError

// NewValidationError creates a validation error using the shared type.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewConflictError(resource, id, reason string) *ConflictError {
	return apperrors.NewConflictError(resource, id, reason)
}

// IsRateLimited reports whether err is a rate-limited collaborator failure.
func IsRateLimited(err error) bool {
	return apperrors.IsRateLimited(err)
}

// IsQuotaExhausted reports whether err is a quota-exhausted collaborator failure.
func IsQuotaExhausted(err error) bool {
	return apperrors.IsQuotaExhausted(err)
}
