package jsonwebtoken

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

var (
	// ErrJWTMissing is returned when the request has no token.
	ErrJWTMissing = errors.New("jwt missing")

	// ErrJWTInvalid is returned when the token does not validate. The
	// validation error is available with errors.As or errors.Is.
	ErrJWTInvalid = errors.New("jwt invalid")
)

// ErrorHandler writes the response for a rejected request. err is
// ErrJWTMissing, an error that Is ErrJWTInvalid, or an extraction error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// DefaultErrorHandler responds 400 for ErrJWTMissing, 401 with a Bearer
// challenge for ErrJWTInvalid and 500 otherwise. The body is JSON and names
// the validation error code when there is one.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var (
		status int
		body   errorResponse
	)
	switch {
	case errors.Is(err, ErrJWTMissing):
		status = http.StatusBadRequest
		body.Message = "JWT is missing."
	case errors.Is(err, ErrJWTInvalid):
		status = http.StatusUnauthorized
		body.Message = "JWT is invalid."
		body.Code = tokenerr.CodeOf(err)
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	default:
		status = http.StatusInternalServerError
		body.Message = "Something went wrong while checking the JWT."
	}

	payload, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// invalidError wraps a validation error so that it Is ErrJWTInvalid.
type invalidError struct {
	details error
}

// Is allows the error to support equality to ErrJWTInvalid.
func (e *invalidError) Is(target error) bool {
	return target == ErrJWTInvalid
}

func (e *invalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrJWTInvalid, e.details)
}

// Unwrap gives access to the validation error.
func (e *invalidError) Unwrap() error {
	return e.details
}
