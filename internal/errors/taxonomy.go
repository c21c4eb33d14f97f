package errors

import (
	"errors"
	"fmt"
)

// ConflictError marks a command that lost a race against another client.
// Callers refetch and re-render the authoritative state.
type ConflictError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Reason   string `json:"reason"`
}

func (ce *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", ce.Resource, ce.ID, ce.Reason)
}

func NewConflictError(resource, id, reason string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

// CollaboratorError wraps a failure of an external collaborator (AI gateway or
// store). RateLimited and QuotaExhausted stay distinct so the UI can present
// them as separate, actionable conditions.
type CollaboratorError struct {
	Collaborator   string `json:"collaborator"`
	StatusCode     int    `json:"status_code,omitempty"`
	RateLimited    bool   `json:"rate_limited"`
	QuotaExhausted bool   `json:"quota_exhausted"`
	Err            error  `json:"-"`
}

func (ce *CollaboratorError) Error() string {
	switch {
	case ce.RateLimited:
		return fmt.Sprintf("%s rate limited", ce.Collaborator)
	case ce.QuotaExhausted:
		return fmt.Sprintf("%s quota exhausted", ce.Collaborator)
	default:
		return fmt.Sprintf("%s failed: %v", ce.Collaborator, ce.Err)
	}
}

func (ce *CollaboratorError) Unwrap() error {
	return ce.Err
}

// IsRateLimited reports whether err is a rate-limited collaborator failure.
func IsRateLimited(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce) && ce.RateLimited
}

// IsQuotaExhausted reports whether err is a quota-exhausted collaborator failure.
func IsQuotaExhausted(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce) && ce.QuotaExhausted
}

// IsCollaboratorError reports whether err originated at an external collaborator.
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
