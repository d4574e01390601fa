package handler

import (
	"sync"

	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
)

// ValidationResult is the outcome of one validation.
type ValidationResult struct {
	IsValid bool

	// Err describes why the token is invalid. It matches the kinds in the
	// tokenerr package with errors.Is.
	Err error

	// SecurityToken is the validated token. For a JWE it is the outer token
	// with the decrypted token set as its inner token.
	SecurityToken *jwt.Token

	TokenType string
	Issuer    string

	// Configuration is the configuration the token was validated against,
	// if any.
	Configuration *configuration.Configuration

	mu       sync.Mutex
	identity *claims.Identity
	built    bool
	build    func() *claims.Identity
}

func invalidResult(err error, token *jwt.Token) *ValidationResult {
	return &ValidationResult{Err: err, SecurityToken: token}
}

// ClaimsIdentity returns the identity built from the token's claims. It is
// built on first use and nil for an invalid result.
func (r *ValidationResult) ClaimsIdentity() *claims.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.built && r.build != nil {
		r.identity = r.build()
		r.built = true
	}
	return r.identity
}

// SetClaimsIdentity replaces the identity.
func (r *ValidationResult) SetClaimsIdentity(identity *claims.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identity = identity
	r.built = true
}
