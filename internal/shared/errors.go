package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique key collision on create.
	ErrDuplicate = errors.New("duplicate key")
	// ErrValidation indicates a missing or malformed input field.
	ErrValidation = errors.New("validation failed")
	// ErrTransport indicates the storage or network call itself failed.
	ErrTransport = errors.New("transport error")
	// ErrPermissionDenied indicates the authorization gate rejected an action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated indicates no valid session accompanies the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
