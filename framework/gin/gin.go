// Package jwtgin validates tokens on gin routes.
package jwtgin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
	"github.com/identitymodel/go-jsonwebtoken/handler"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// DefaultResultKey is the gin context key of the validation result.
const DefaultResultKey = "jwt"

var (
	ErrMissingResult = errors.New("no token validation result found in context")
	ErrInvalidResult = errors.New("invalid token validation result type")
)

type middlewareConfig struct {
	errorHandler      func(*gin.Context, error)
	contextKey        string
	middlewareOptions []jsonwebtoken.Option
}

// New returns a gin middleware that validates the request token with h
// against params. The result is stored under the context key and in the
// request context.
func New(h *handler.TokenHandler, params *handler.ValidationParameters, opts ...Option) (gin.HandlerFunc, error) {
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

	return func(c *gin.Context) {
		if middleware.Skip(c.Request) {
			c.Next()
			return
		}

		result, err := middleware.Authenticate(c.Request)
		if err != nil {
			config.errorHandler(c, err)
			c.Abort()
			return
		}
		if result != nil {
			c.Set(config.contextKey, result)
			c.Request = c.Request.WithContext(jsonwebtoken.NewContext(c.Request.Context(), result))
		}
		c.Next()
	}, nil
}

func defaultErrorHandler(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, jsonwebtoken.ErrJWTMissing):
		status = http.StatusBadRequest
	case errors.Is(err, jsonwebtoken.ErrJWTInvalid):
		status = http.StatusUnauthorized
	}

	body := gin.H{"message": http.StatusText(status)}
	if code := tokenerr.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.AbortWithStatusJSON(status, body)
}

// GetResult returns the validation result stored under contextKey, or under
// DefaultResultKey when contextKey is empty.
func GetResult(c *gin.Context, contextKey string) (*handler.ValidationResult, error) {
	if contextKey == "" {
		contextKey = DefaultResultKey
	}
	value, exists := c.Get(contextKey)
	if !exists {
		return nil, ErrMissingResult
	}

	result, ok := value.(*handler.ValidationResult)
	if !ok {
		return nil, ErrInvalidResult
	}
	return result, nil
}
