package types

import "fmt"

// GatewayError is the error type surfaced by gateway components.
// The Code determines how the HTTP boundary maps it to a status.
type GatewayError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation          = "validation_error"
	ErrCodePaymentRequired     = "payment_required"
	ErrCodePaymentRejected     = "payment_rejected"
	ErrCodeInvalidEvidence     = "invalid_payment_evidence"
	ErrCodeStaleQuote          = "stale_quote"
	ErrCodeExecutionFailed     = "execution_failed"
	ErrCodeUnknownAsset        = "unknown_asset"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeInternal            = "internal_error"
)

// NewGatewayError creates a new gateway error
func NewGatewayError(code, message string, details map[string]interface{}) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...interface{}) *GatewayError {
	return &GatewayError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Upstreamf builds an upstream-unavailable error from a format string.
func Upstreamf(format string, args ...interface{}) *GatewayError {
	return &GatewayError{Code: ErrCodeUpstreamUnavailable, Message: fmt.Sprintf(format, args...)}
}
