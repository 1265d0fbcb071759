// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the link and enumeration paths.
var (
	// Caller errors.
	ErrBadRequest = errors.New("bad request")

	// Deployment errors.
	ErrConfiguration = errors.New("configuration error")

	// Exchange-stage errors. No credential was persisted.
	ErrNetwork            = errors.New("aggregator network error")
	ErrAggregatorRejected = errors.New("aggregator rejected request")
	ErrMalformedResponse  = errors.New("malformed aggregator response")

	// Persist-stage errors. The credential may or may not exist.
	ErrStoreWrite = errors.New("credential store write failed")

	// Enumeration errors.
	ErrStoreRead     = errors.New("credential store read failed")
	ErrInvalidRecord = errors.New("invalid credential record")
)

// Stages reported by Stage.
const (
	StageRequest   = "request"
	StageConfig    = "config"
	StageExchange  = "exchange"
	StagePersist   = "persist"
	StageEnumerate = "enumerate"
	StageUnknown   = "unknown"
)

// RejectedError is returned when the aggregator answers with a non-success status.
// Code and Message are only set when the body decoded as an aggregator error.
type RejectedError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s - %s", ErrAggregatorRejected, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", ErrAggregatorRejected, e.StatusCode)
}

// Is lets errors.Is(err, ErrAggregatorRejected) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrAggregatorRejected
}

// Stage reports which step of the pipeline produced err.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreWrite):
		return StagePersist
	case errors.Is(err, ErrBadRequest):
		return StageRequest
	case errors.Is(err, ErrConfiguration):
		return StageConfig
	case errors.Is(err, ErrNetwork),
		errors.Is(err, ErrAggregatorRejected),
		errors.Is(err, ErrMalformedResponse):
		return StageExchange
	case errors.Is(err, ErrStoreRead), errors.Is(err, ErrInvalidRecord):
		return StageEnumerate
	default:
		return StageUnknown
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
