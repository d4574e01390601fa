package jsonwebtoken

import (
	"context"
	"errors"

	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/handler"
)

type contextKey int

const resultKey contextKey = iota

// ErrResultNotFound is returned when the context holds no validation result.
var ErrResultNotFound = errors.New("validation result not found in context")

// NewContext returns a copy of ctx carrying result.
func NewContext(ctx context.Context, result *handler.ValidationResult) context.Context {
	return context.WithValue(ctx, resultKey, result)
}

// ResultFromContext returns the validation result stored by the middleware.
func ResultFromContext(ctx context.Context) (*handler.ValidationResult, error) {
	result, ok := ctx.Value(resultKey).(*handler.ValidationResult)
	if !ok || result == nil {
		return nil, ErrResultNotFound
	}
	return result, nil
}

// IdentityFromContext returns the claims identity of the validated token.
func IdentityFromContext(ctx context.Context) (*claims.Identity, error) {
	result, err := ResultFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return result.ClaimsIdentity(), nil
}

// HasResult reports whether ctx carries a validation result.
func HasResult(ctx context.Context) bool {
	_, err := ResultFromContext(ctx)
	return err == nil
}
