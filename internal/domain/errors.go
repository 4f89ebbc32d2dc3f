package domain

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrPersistence       = errors.New("persistence error")
	ErrConnectionFailure = errors.New("connection failure")
	ErrNotFound          = errors.New("order not found")
	ErrMalformedMessage  = errors.New("malformed message")
)
