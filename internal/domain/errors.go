package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by a conversion run
type ErrorKind string

const (
	ErrorKindInvalidDimensions ErrorKind = "invalid_dimensions"
	ErrorKindInvalidScale      ErrorKind = "invalid_scale"
	ErrorKindDecode            ErrorKind = "decode"
	ErrorKindPersist           ErrorKind = "persist"
	ErrorKindSerialization     ErrorKind = "serialization"
	ErrorKindCleanup           ErrorKind = "cleanup"
	ErrorKindInvalidConfig     ErrorKind = "invalid_config"
	ErrorKindFetch             ErrorKind = "fetch"
	ErrorKindPublish           ErrorKind = "publish"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func InvalidDimensionsError(message string, err error) *DomainError {
	return NewError(ErrorKindInvalidDimensions, message, err)
}

func InvalidScaleError(message string, err error) *DomainError {
	return NewError(ErrorKindInvalidScale, message, err)
}

func DecodeError(message string, err error) *DomainError {
	return NewError(ErrorKindDecode, message, err)
}

func PersistError(message string, err error) *DomainError {
	return NewError(ErrorKindPersist, message, err)
}

func SerializationError(message string, err error) *DomainError {
	return NewError(ErrorKindSerialization, message, err)
}

func CleanupError(message string, err error) *DomainError {
	return NewError(ErrorKindCleanup, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorKindInvalidConfig, message, err)
}

func FetchError(message string, err error) *DomainError {
	return NewError(ErrorKindFetch, message, err)
}

func PublishError(message string, err error) *DomainError {
	return NewError(ErrorKindPublish, message, err)
}

// KindOf returns the kind of the first DomainError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
