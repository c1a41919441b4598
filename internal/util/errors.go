package util

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailRegistered = errors.New("email already registered")

	// Ownership mismatches map to not-found on purpose, so callers cannot
	// probe for other students' attempts.
	ErrTestNotFound    = errors.New("test not found")
	ErrAttemptNotFound = errors.New("attempt not found")

	ErrAccessDenied         = errors.New("no access to this test")
	ErrTestDisabled         = errors.New("test disabled")
	ErrDeadlinePassed       = errors.New("deadline passed")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrAttemptFinished      = errors.New("attempt already finalized")
	ErrAttemptNotReviewable = errors.New("attempt not ready for review")
	ErrInvalidAttemptToken  = errors.New("invalid attempt token")

	ErrValidation = errors.New("validation failed")
)
