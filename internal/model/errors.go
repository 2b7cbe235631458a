package model

import "errors"

// Error kinds. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrInvalid   = errors.New("invalid request")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
	ErrTooLarge  = errors.New("too large")
)

// Error is a classified failure with a short message meant for the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Common classified errors.
var (
	ErrAssetNotFound = NewError(ErrNotFound, "asset not found")
	ErrMeNotFound    = NewError(ErrNotFound, "me not found")
	ErrAlreadyBusy   = NewError(ErrConflict, "already busy")
	ErrAlreadyFree   = NewError(ErrConflict, "already free")
	ErrNotYourAsset  = NewError(ErrForbidden, "not your asset")
	ErrNoWorkType    = NewError(ErrInvalid, "workType is required")
	ErrBadProblem    = NewError(ErrInvalid, "invalid problem value")
	ErrNoFile        = NewError(ErrInvalid, "No file uploaded")
	ErrFileTooLarge  = NewError(ErrTooLarge, "file too large")
)
