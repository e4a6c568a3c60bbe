package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAuthRejected = errors.New("authentication rejected")
	ErrClosed       = errors.New("connection closed")
)
