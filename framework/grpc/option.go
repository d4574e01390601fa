package jwtgrpc

import (
	"errors"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
	"github.com/identitymodel/go-jsonwebtoken/logging"
)

// Option configures an Interceptor.
type Option func(*Interceptor) error

// ErrExcludedMethodsEmpty is returned by WithExcludedMethods for an empty
// list.
var ErrExcludedMethodsEmpty = errors.New("excluded methods list cannot be empty")

// WithTokenExtractor sets how the token is read from the call.
//
// Default: MetadataTokenExtractor
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) error {
		if extractor == nil {
			return jsonwebtoken.ErrTokenExtractorNil
		}
		i.tokenExtractor = extractor
		return nil
	}
}

// WithCredentialsOptional lets calls without a token through.
func WithCredentialsOptional(value bool) Option {
	return func(i *Interceptor) error {
		i.credentialsOptional = value
		return nil
	}
}

// WithExcludedMethods skips validation for the given full method names,
// e.g. "/grpc.health.v1.Health/Check".
func WithExcludedMethods(methods []string) Option {
	return func(i *Interceptor) error {
		if len(methods) == 0 {
			return ErrExcludedMethodsEmpty
		}
		set := make(map[string]struct{}, len(methods))
		for _, m := range methods {
			set[m] = struct{}{}
		}
		i.exclusionChecker = func(method string) bool {
			_, ok := set[method]
			return ok
		}
		return nil
	}
}

// WithExclusionChecker skips validation for methods the checker accepts.
func WithExclusionChecker(checker func(method string) bool) Option {
	return func(i *Interceptor) error {
		if checker == nil {
			return errors.New("exclusion checker cannot be nil")
		}
		i.exclusionChecker = checker
		return nil
	}
}

// WithErrorHandler sets the handler converting rejections to statuses.
func WithErrorHandler(h ErrorHandler) Option {
	return func(i *Interceptor) error {
		if h == nil {
			return jsonwebtoken.ErrErrorHandlerNil
		}
		i.errorHandler = h
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(i *Interceptor) error {
		if logger == nil {
			return jsonwebtoken.ErrLoggerNil
		}
		i.logger = logger
		return nil
	}
}
