package jsonwebtoken

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMalformedAuthorization is returned when the Authorization header is not
// a bearer credential.
var ErrMalformedAuthorization = errors.New("authorization header format must be Bearer {token}")

// TokenExtractor reads the token from a request. It returns an empty string
// and no error when the request carries no token, and an error only when a
// token is present but malformed.
type TokenExtractor func(r *http.Request) (string, error)

// AuthHeaderTokenExtractor reads a bearer token from the Authorization header.
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	return BearerToken(r.Header.Get("Authorization"))
}

// BearerToken returns the token of an Authorization header value, or "" when
// the value is empty.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", nil
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedAuthorization
	}
	return parts[1], nil
}

// CookieTokenExtractor reads the token from the named cookie.
func CookieTokenExtractor(cookieName string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(cookieName)
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return cookie.Value, nil
	}
}

// ParameterTokenExtractor reads the token from a query string parameter.
func ParameterTokenExtractor(param string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		return r.URL.Query().Get(param), nil
	}
}

// MultiTokenExtractor returns the first non-empty token found by extractors,
// stopping at the first error.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(r *http.Request) (string, error) {
		for _, ex := range extractors {
			token, err := ex(r)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
