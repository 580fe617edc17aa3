package service

import (
	"errors"
	"fmt"

	"agency-crm-api/internal/model"
)

// Kind classifies a service failure so transports can map it to a status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by every service.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newValidation(msg string) *Error      { return &Error{Kind: KindValidation, Message: msg} }
func newUnauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func newForbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func newNotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }

func newInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var insufficient *InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return KindValidation
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// InsufficientCreditsError is a validation failure that carries what the
// caller needs to tell the closer how far short they are.
type InsufficientCreditsError struct {
	RequiredCredits int                 `json:"requiredCredits"`
	CurrentCredits  int                 `json:"currentCredits"`
	ClientScore     int                 `json:"clientScore"`
	ScoreCategory   model.ScoreCategory `json:"scoreCategory"`
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("Insufficient credits: %d required for a %s score lead (score %d), %d available",
		e.RequiredCredits, e.ScoreCategory, e.ClientScore, e.CurrentCredits)
}
