package httpx

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// APIError is a failure carrying an explicit status code. The Error Responder
// sends its Message verbatim.
type APIError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.err }

func newAPIError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Message: message, err: pkgerrors.New(message)}
}

// wrapAPIError keeps cause in the chain so development stacks point at the
// original failure.
func wrapAPIError(status int, message string, cause error) *APIError {
	return &APIError{StatusCode: status, Message: message, err: pkgerrors.WithStack(cause)}
}

func errUnauthorized(message string) *APIError {
	return newAPIError(http.StatusUnauthorized, message)
}

func errNotFound(message string) *APIError {
	return newAPIError(http.StatusNotFound, message)
}

func errMethodNotAllowed() *APIError {
	return newAPIError(http.StatusMethodNotAllowed, "Method not allowed")
}

func errTooManyRequests() *APIError {
	return newAPIError(http.StatusTooManyRequests, "Too many requests, please try again later")
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// stackOf renders the innermost recorded stack, or the current one when err
// never passed through pkg/errors.
func stackOf(err error) string {
	var tracer stackTracer
	if errors.As(err, &tracer) {
		return fmt.Sprintf("%+v", tracer)
	}
	return fmt.Sprintf("%+v", pkgerrors.WithStack(err))
}
