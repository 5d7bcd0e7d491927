// Package common defines shared constants and sentinel errors used across
// pollkeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Registration errors.
	ErrEmailTaken = errors.New("email already registered")

	// Poll/vote business-rule errors.
	ErrPollInactive  = errors.New("poll is not active")
	ErrPollExpired   = errors.New("poll has expired")
	ErrInvalidOption = errors.New("option does not belong to poll")
)
