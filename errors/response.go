package errors

import stderrors "errors"

// ErrorResponse is the JSON body written to clients.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the client-visible part of an AppError.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts the error to its wire form. The cause is never exposed.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// Converter is implemented by domain errors that know their AppError form.
type Converter interface {
	AppError() *AppError
}

// AsAppError extracts an AppError from err, either directly or through a Converter
// anywhere in the wrap chain.
func AsAppError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	var conv Converter
	if stderrors.As(err, &conv) {
		return conv.AppError(), true
	}
	return nil, false
}

// From always returns an AppError, falling back to Internal.
func From(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
