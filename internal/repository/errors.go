package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientBalance is returned by a conditional deduction that matched no account.
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
