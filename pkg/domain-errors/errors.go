// Package domainerrors provides coded domain errors. Services return these so
// transports can translate failures into specific, stable reasons without
// inspecting error strings. Import aliased as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class. Codes are part of the API contract:
// clients branch on them, so never rename an existing code.
type Code string

const (
	// Generic codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"

	// Lifecycle codes.
	CodeIllegalPhase  Code = "illegal_phase"
	CodeReentrantCall Code = "reentrant_call"

	// Configuration codes.
	CodeInvalidReference      Code = "invalid_reference"
	CodeInvalidCapacity       Code = "invalid_capacity"
	CodeInvalidThresholdCount Code = "invalid_threshold_count"
	CodeInvalidThresholdSum   Code = "invalid_threshold_sum"
	CodeRendererNotReady      Code = "renderer_not_ready"

	// Claim codes.
	CodeGroupMismatch    Code = "group_mismatch"
	CodeInvalidGroupSize Code = "invalid_group_size"
	CodeInvalidGroupRank Code = "invalid_group_rank"
	CodeBadSignature     Code = "bad_signature"
	CodeAlreadyMinted    Code = "already_minted"

	// Numeric safety.
	CodeArithmeticOverflow Code = "arithmetic_overflow"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is shorthand for HasCode, matching how call sites read.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status used by the JSON error envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidReference, CodeInvalidCapacity,
		CodeInvalidThresholdCount, CodeInvalidThresholdSum,
		CodeGroupMismatch, CodeInvalidGroupSize, CodeInvalidGroupRank:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeBadSignature:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyMinted, CodeIllegalPhase,
		CodeReentrantCall, CodeRendererNotReady:
		return http.StatusConflict
	case CodeArithmeticOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
