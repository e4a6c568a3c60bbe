// Package common defines shared constants and sentinel errors used across
// the gophchat server and client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Realtime core taxonomy.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidContent       = errors.New("invalid content")
	ErrDeliveryFailed       = errors.New("delivery failed")

	// Message recall is only allowed for a short time after sending.
	ErrRecallExpired = errors.New("recall window expired")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
