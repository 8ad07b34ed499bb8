package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/brandchat-server/internal/proto"
)

// Error codes for domain errors.
const (
	ErrCodeForbidden  = "forbidden"
	ErrCodeNotFound   = "not_found"
	ErrCodeBadRequest = "bad_request"
)

var (
	// ErrInfrastructure marks storage or bus failures. They are fatal to the connection.
	ErrInfrastructure = errors.New("infrastructure failure")
	// ErrUnauthenticated is returned by the gate for anonymous connections.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRejected is returned by the gate when the admission policy fails.
	ErrRejected = errors.New("connection rejected")
)

// CoreError is a domain error answered in the reply frame. Status is the
// HTTP-style code placed into response_status.
type CoreError struct {
	Status  int
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(status int, code, msg string) *CoreError {
	return &CoreError{Status: status, Code: code, Message: msg}
}

func forbidden(msg string) *CoreError {
	return coreError(proto.StatusForbidden, ErrCodeForbidden, msg)
}

func notFound(msg string) *CoreError {
	return coreError(proto.StatusNotFound, ErrCodeNotFound, msg)
}

func badRequest(msg string) *CoreError {
	return coreError(proto.StatusBadRequest, ErrCodeBadRequest, msg)
}

// BadRequest builds a 400 domain error for malformed frames.
func BadRequest(msg string) *CoreError {
	return badRequest(msg)
}

// AsCoreError extracts a domain error from err.
func AsCoreError(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func infra(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}
