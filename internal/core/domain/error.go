package domain

import (
	"errors"
	"fmt"
)

// Params records the arguments of a failed operation by parameter name.
type Params map[string]any

// Codes used for failures detected by the relay itself rather than the
// media control server.
const (
	CodeBadRequest  = "bad_request"
	CodeRateLimited = "rate_limited"
)

// OperationError is the only error shape clients ever see.
type OperationError struct {
	Type      string    `json:"type"`
	Code      any       `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details"`
	Operation Operation `json:"operation"`
	Params    Params    `json:"params"`
}

func NewOperationError(op Operation, params Params, code any, message string, details any) *OperationError {
	return &OperationError{
		Type:      "error",
		Code:      code,
		Message:   message,
		Details:   details,
		Operation: op,
		Params:    params,
	}
}

// FromError normalizes err into an OperationError for op. A MediaError is
// destructured into code, message and details; anything else keeps only
// its text.
func FromError(err error, op Operation, params Params) *OperationError {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return NewOperationError(op, params, mediaErr.Code, mediaErr.Message, mediaErr.Details)
	}
	return NewOperationError(op, params, nil, err.Error(), nil)
}

func (e *OperationError) Error() string {
	if e.Code == nil {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: %v %s", e.Operation, e.Code, e.Message)
}

// MediaError is a rejection reported by the media control server.
type MediaError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media control error %v: %s", e.Code, e.Message)
}
