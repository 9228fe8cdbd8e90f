package common

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Callers switch on Kind, never on message text.
type Kind string

const (
	KindTimeout             Kind = "Timeout"
	KindMissingCapability   Kind = "MissingCapability"
	KindUnprocessable       Kind = "Unprocessable"
	KindInferenceEmpty      Kind = "InferenceEmpty"
	KindInferenceMalformed  Kind = "InferenceMalformed"
	KindExtractionEmpty     Kind = "ExtractionEmpty"
	KindInsufficientCredits Kind = "InsufficientCredits"
	KindStoreError          Kind = "StoreError"
	KindInvalidInput        Kind = "InvalidInput"
	KindInternal            Kind = "Internal"
)

var userMessages = map[Kind]string{
	KindTimeout:             "Reading the document took too long. Please try again with a smaller file.",
	KindMissingCapability:   "This document appears to be scanned or image-based, and image processing is not available right now.",
	KindUnprocessable:       "We could not find any readable content in this document.",
	KindInferenceEmpty:      "The extraction service returned no data for this document. Please try again.",
	KindInferenceMalformed:  "The extraction service returned an unexpected response. Please try again.",
	KindExtractionEmpty:     "We could not extract any profile information from this document.",
	KindInsufficientCredits: "You do not have enough credits to process this document.",
	KindStoreError:          "We could not save the extraction result. Please try again.",
	KindInvalidInput:        "The uploaded file is not a valid PDF document.",
	KindInternal:            "Something went wrong while processing the document.",
}

// AppError represents application-specific errors
type AppError struct {
	Kind    Kind
	Message string
	Cause   error

	// Set only for KindInsufficientCredits.
	CreditsRemaining int64
	CreditsRequired  int64
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// UserMessage is the stable, user-safe text for the error's kind.
func (e *AppError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[KindInternal]
}

// Common application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrJobNotProcessing = errors.New("job is not in processing state")
	ErrCapabilityAbsent = errors.New("capability not configured")
)

// Error constructors
func NewAppError(kind Kind, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func Errorf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InsufficientCredits builds the credit error with the balance envelope fields populated.
func InsufficientCredits(remaining, required int64) *AppError {
	return &AppError{
		Kind:             KindInsufficientCredits,
		Message:          fmt.Sprintf("balance %d below cost %d", remaining, required),
		CreditsRemaining: remaining,
		CreditsRequired:  required,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf reports the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the user-safe message for err.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage()
	}
	return userMessages[KindInternal]
}
