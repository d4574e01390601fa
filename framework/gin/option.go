package jwtgin

import (
	"errors"

	"github.com/gin-gonic/gin"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
)

// Option configures the middleware.
type Option func(*middlewareConfig) error

// WithErrorHandler sets the handler for rejected requests. The request is
// aborted after it returns.
func WithErrorHandler(h func(*gin.Context, error)) Option {
	return func(config *middlewareConfig) error {
		if h == nil {
			return jsonwebtoken.ErrErrorHandlerNil
		}
		config.errorHandler = h
		return nil
	}
}

// WithContextKey sets the gin context key of the validation result.
func WithContextKey(key string) Option {
	return func(config *middlewareConfig) error {
		if key == "" {
			return errors.New("context key cannot be empty")
		}
		config.contextKey = key
		return nil
	}
}

// WithTokenExtractor sets how the token is read from the request.
func WithTokenExtractor(extractor jsonwebtoken.TokenExtractor) Option {
	return WithMiddlewareOptions(jsonwebtoken.WithTokenExtractor(extractor))
}

// WithMiddlewareOptions passes options to the underlying net/http
// middleware, such as jsonwebtoken.WithCredentialsOptional.
func WithMiddlewareOptions(opts ...jsonwebtoken.Option) Option {
	return func(config *middlewareConfig) error {
		config.middlewareOptions = append(config.middlewareOptions, opts...)
		return nil
	}
}
