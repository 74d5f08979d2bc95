package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPaymentNotFound indicates that the requested payment does not exist
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAppointmentNotFound indicates that the referenced appointment does not exist
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ValidationError is returned for bad or missing client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GatewayAuthError is returned when the gateway rejects the credential exchange.
type GatewayAuthError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *GatewayAuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway authentication failed: %v", e.Cause)
	}
	return fmt.Sprintf("gateway authentication failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayAuthError) Unwrap() error {
	return e.Cause
}

// GatewaySubmissionError is returned when a push request is not accepted.
// StatusCode is zero for transport failures and timeouts.
type GatewaySubmissionError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *GatewaySubmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway submission failed: %v", e.Cause)
	}
	return fmt.Sprintf("gateway submission failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewaySubmissionError) Unwrap() error {
	return e.Cause
}

// PaymentInitiationError means the payment was not started and the caller may retry.
type PaymentInitiationError struct {
	Cause error
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("payment initiation failed: %v", e.Cause)
}

func (e *PaymentInitiationError) Unwrap() error {
	return e.Cause
}

// NewPaymentInitiationError wraps an upstream gateway failure
func NewPaymentInitiationError(cause error) *PaymentInitiationError {
	return &PaymentInitiationError{Cause: cause}
}

// MalformedCallbackError is returned when a gateway callback cannot be processed.
type MalformedCallbackError struct {
	Reason string
	Cause  error
}

func (e *MalformedCallbackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed callback: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed callback: %s", e.Reason)
}

func (e *MalformedCallbackError) Unwrap() error {
	return e.Cause
}

// NewMalformedCallbackError creates a new MalformedCallbackError
func NewMalformedCallbackError(reason string, cause error) *MalformedCallbackError {
	return &MalformedCallbackError{Reason: reason, Cause: cause}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
