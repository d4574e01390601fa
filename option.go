package jsonwebtoken

import (
	"errors"
	"net/http"

	"github.com/identitymodel/go-jsonwebtoken/logging"
)

// Option configures the Middleware.
type Option func(*Middleware) error

// Errors returned by New and its options.
var (
	ErrHandlerNil         = errors.New("token handler cannot be nil")
	ErrParametersNil      = errors.New("validation parameters cannot be nil")
	ErrErrorHandlerNil    = errors.New("errorHandler cannot be nil")
	ErrTokenExtractorNil  = errors.New("tokenExtractor cannot be nil")
	ErrExclusionURLsEmpty = errors.New("exclusion URLs list cannot be empty")
	ErrLoggerNil          = errors.New("logger cannot be nil")
)

// WithCredentialsOptional sets whether a request without a token is let
// through.
//
// Default: false
func WithCredentialsOptional(value bool) Option {
	return func(m *Middleware) error {
		m.credentialsOptional = value
		return nil
	}
}

// WithValidateOnOptions sets whether OPTIONS requests are validated.
//
// Default: true
func WithValidateOnOptions(value bool) Option {
	return func(m *Middleware) error {
		m.validateOnOptions = value
		return nil
	}
}

// WithErrorHandler sets the handler called when a request is rejected.
//
// Default: DefaultErrorHandler
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Middleware) error {
		if h == nil {
			return ErrErrorHandlerNil
		}
		m.errorHandler = h
		return nil
	}
}

// WithTokenExtractor sets how the token is read from the request.
//
// Default: AuthHeaderTokenExtractor
func WithTokenExtractor(e TokenExtractor) Option {
	return func(m *Middleware) error {
		if e == nil {
			return ErrTokenExtractorNil
		}
		m.tokenExtractor = e
		return nil
	}
}

// WithExclusionURLs skips validation for requests whose full URL or path is
// in exclusions.
func WithExclusionURLs(exclusions []string) Option {
	return func(m *Middleware) error {
		if len(exclusions) == 0 {
			return ErrExclusionURLsEmpty
		}
		m.exclusionURLHandler = func(r *http.Request) bool {
			for _, exclusion := range exclusions {
				if r.URL.String() == exclusion || r.URL.Path == exclusion {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Middleware) error {
		if logger == nil {
			return ErrLoggerNil
		}
		m.logger = logger
		return nil
	}
}
