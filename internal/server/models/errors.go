package models

import "errors"

var (
	// ErrAlreadyExists is returned when registering a username that is taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers both unknown user and wrong password,
	// so login failures do not leak which usernames exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned for a well-formed credential past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken is returned for a missing, garbled or forged credential.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden is returned when the caller's role is insufficient.
	ErrForbidden = errors.New("permission denied")
	// ErrNotFound is returned for a document or user that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIDCollision is returned when a generated identifier is already taken
	// within the owner's namespace.
	ErrIDCollision = errors.New("identifier collision")
)
