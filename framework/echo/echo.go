// Package jwtecho validates tokens on echo routes.
package jwtecho

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
	"github.com/identitymodel/go-jsonwebtoken/handler"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// DefaultResultKey is the echo context key of the validation result.
const DefaultResultKey = "jwt"

type middlewareConfig struct {
	errorHandler      func(echo.Context, error) error
	contextKey        string
	middlewareOptions []jsonwebtoken.Option
}

// New returns an echo middleware that validates the request token with h
// against params. The result is stored under the context key and in the
// request context.
func New(h *handler.TokenHandler, params *handler.ValidationParameters, opts ...Option) (echo.MiddlewareFunc, error) {
	config := &middlewareConfig{
		errorHandler: defaultErrorHandler,
		contextKey:   DefaultResultKey,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	middleware, err := jsonwebtoken.New(h, params, config.middlewareOptions...)
	if err != nil {
		return nil, err
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if middleware.Skip(r) {
				return next(c)
			}

			result, err := middleware.Authenticate(r)
			if err != nil {
				return config.errorHandler(c, err)
			}
			if result != nil {
				c.Set(config.contextKey, result)
				c.SetRequest(r.WithContext(jsonwebtoken.NewContext(r.Context(), result)))
			}
			return next(c)
		}
	}, nil
}

func defaultErrorHandler(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, jsonwebtoken.ErrJWTMissing):
		status = http.StatusBadRequest
	case errors.Is(err, jsonwebtoken.ErrJWTInvalid):
		status = http.StatusUnauthorized
	}

	body := map[string]string{"message": http.StatusText(status)}
	if code := tokenerr.CodeOf(err); code != "" {
		body["code"] = code
	}
	return c.JSON(status, body)
}

// GetResult returns the validation result stored under contextKey, or under
// DefaultResultKey when contextKey is empty.
func GetResult(c echo.Context, contextKey string) (*handler.ValidationResult, bool) {
	if contextKey == "" {
		contextKey = DefaultResultKey
	}
	result, ok := c.Get(contextKey).(*handler.ValidationResult)
	return result, ok
}
