package jsonwebtoken

import (
	"fmt"
	"net/http"

	"github.com/identitymodel/go-jsonwebtoken/handler"
	"github.com/identitymodel/go-jsonwebtoken/logging"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// Middleware validates the token of each request with a TokenHandler.
type Middleware struct {
	handler             *handler.TokenHandler
	params              *handler.ValidationParameters
	errorHandler        ErrorHandler
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	validateOnOptions   bool
	exclusionURLHandler ExclusionURLHandler
	logger              logging.Logger
}

// ExclusionURLHandler reports whether a request skips validation.
type ExclusionURLHandler func(r *http.Request) bool

// New returns a Middleware that validates tokens with h against params.
//
// Example:
//
//	h, err := handler.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	params := handler.DefaultValidationParameters()
//	params.ConfigurationManager = manager
//	params.ValidAudience = "my-api"
//
//	middleware, err := jsonwebtoken.New(h, params)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":3000", middleware.CheckJWT(api))
func New(h *handler.TokenHandler, params *handler.ValidationParameters, opts ...Option) (*Middleware, error) {
	if h == nil {
		return nil, ErrHandlerNil
	}
	if params == nil {
		return nil, ErrParametersNil
	}

	m := &Middleware{
		handler:           h,
		params:            params,
		errorHandler:      DefaultErrorHandler,
		tokenExtractor:    AuthHeaderTokenExtractor,
		validateOnOptions: true,
		logger:            logging.Nop(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return m, nil
}

// Skip reports whether r is excluded from validation, either by URL or
// because it is an OPTIONS request and those are not validated.
func (m *Middleware) Skip(r *http.Request) bool {
	if m.exclusionURLHandler != nil && m.exclusionURLHandler(r) {
		m.logger.Debugf("skipping token validation for excluded URL %s %s", r.Method, r.URL.Path)
		return true
	}
	if !m.validateOnOptions && r.Method == http.MethodOptions {
		m.logger.Debugf("skipping token validation for OPTIONS request")
		return true
	}
	return false
}

// Authenticate extracts and validates the token of r. It returns a nil result
// and a nil error when there is no token and credentials are optional.
func (m *Middleware) Authenticate(r *http.Request) (*handler.ValidationResult, error) {
	token, err := m.tokenExtractor(r)
	if err != nil {
		// Not ErrJWTMissing: the extractor found something it could not read.
		m.logger.Errorf("failed to extract token from request %s %s: %v", r.Method, r.URL.Path, err)
		return nil, fmt.Errorf("error extracting token: %w", err)
	}

	if token == "" {
		if m.credentialsOptional {
			m.logger.Debugf("no credentials provided, continuing without a token")
			return nil, nil
		}
		return nil, ErrJWTMissing
	}

	result := m.handler.ValidateToken(r.Context(), token, m.params)
	if !result.IsValid {
		m.logger.Warnf("token validation failed for %s %s (%s): %v", r.Method, r.URL.Path, tokenerr.CodeOf(result.Err), result.Err)
		return nil, &invalidError{details: result.Err}
	}
	return result, nil
}

// CheckJWT returns a handler that calls next only for requests with a valid
// token, or none when credentials are optional. The validation result is
// available from the request context with ResultFromContext.
func (m *Middleware) CheckJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.Authenticate(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}
		if result == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), result)))
	})
}
