package errors

import "fmt"

// Error codes
const (
	CodeBridgeError = "BRIDGE_ERROR"
	CodeAPIError    = "API_ERROR"
	CodeParse       = "PARSE_ERROR"
	CodeValidation  = "VALIDATION_ERROR"
	CodeCache       = "CACHE_ERROR"
	CodeScan        = "SCAN_ERROR"
)

type BridgeError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *BridgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BridgeError) Unwrap() error {
	return e.Cause
}

func NewBridgeError(message, code string, statusCode int, context map[string]any) *BridgeError {
	return &BridgeError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *BridgeError) WithCause(cause error) *BridgeError {
	e.Cause = cause
	return e
}

type APIError struct {
	*BridgeError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		BridgeError: &BridgeError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
	}
}

// ParseError describes a failure while extracting tag data from text. It is
// internal to the parsing layer: the host-facing call path collapses it to an
// empty result.
type ParseError struct {
	*BridgeError
	Syntax string
	Line   int
}

func NewParseError(message, syntax string, line int, cause error) *ParseError {
	return &ParseError{
		BridgeError: &BridgeError{
			Message: message,
			Code:    CodeParse,
			Context: map[string]any{
				"syntax": syntax,
				"line":   line,
			},
			Cause: cause,
		},
		Syntax: syntax,
		Line:   line,
	}
}

type ValidationError struct {
	*BridgeError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		BridgeError: &BridgeError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*BridgeError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		BridgeError: &BridgeError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// ScanError wraps a per-lorebook scan failure. One lorebook failing must
// never abort the scan of the others.
type ScanError struct {
	*BridgeError
	Lorebook string
}

func NewScanError(message, lorebook string, cause error) *ScanError {
	return &ScanError{
		BridgeError: &BridgeError{
			Message: message,
			Code:    CodeScan,
			Context: map[string]any{
				"lorebook": lorebook,
			},
			Cause: cause,
		},
		Lorebook: lorebook,
	}
}
