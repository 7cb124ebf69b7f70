package types

import "errors"

// Error taxonomy shared by every component. Callers wrap these with
// fmt.Errorf("...: %w", ErrX) and the REST layer maps them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoData            = errors.New("no data")
	ErrValidation        = errors.New("validation failed")

	// ErrInvalidTransition is a Conflict: the equipment is in a state that has
	// no transition for the requested action.
	ErrInvalidTransition = &wrappedError{msg: "invalid transition", base: ErrConflict}
)

type wrappedError struct {
	msg  string
	base error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.base }

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
