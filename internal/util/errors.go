package util

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("email or username already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrInvalidQuestion     = errors.New("question index out of range")
	ErrIncompleteQuiz      = errors.New("quiz has unanswered questions")
	ErrSummaryMissing      = errors.New("quiz has no final feedback yet")
	ErrMissingMedia        = errors.New("a video or audio file is required")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrServiceUnconfigured = errors.New("service is not configured")
)
