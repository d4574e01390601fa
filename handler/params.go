package handler

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/replay"
)

// DefaultClockSkew is the leeway applied to time comparisons.
const DefaultClockSkew = 5 * time.Minute

// DefaultAuthenticationType is the authentication type of identities built
// from validated tokens.
const DefaultAuthenticationType = "AuthenticationTypes.Federation"

// KeyResolver returns candidate keys for a token.
type KeyResolver func(token string, parsed *jwt.Token, kid string, p *ValidationParameters) []jwk.Key

// KeyResolverUsingConfiguration is a KeyResolver that also sees the
// configuration of the current attempt, which may be nil.
type KeyResolverUsingConfiguration func(token string, parsed *jwt.Token, kid string, p *ValidationParameters, cfg *configuration.Configuration) []jwk.Key

// SignatureValidator validates the signature of token and returns the parsed
// token.
type SignatureValidator func(token string, p *ValidationParameters) (*jwt.Token, error)

// SignatureValidatorUsingConfiguration is a SignatureValidator that also sees
// the configuration of the current attempt.
type SignatureValidatorUsingConfiguration func(token string, p *ValidationParameters, cfg *configuration.Configuration) (*jwt.Token, error)

// ValidationParameters controls how a token is validated.
//
// The zero value disables every check, including the signature requirement.
// Start from DefaultValidationParameters for the usual behavior.
type ValidationParameters struct {
	IssuerSigningKey    jwk.Key
	IssuerSigningKeys   []jwk.Key
	TokenDecryptionKey  jwk.Key
	TokenDecryptionKeys []jwk.Key

	IssuerSigningKeyResolver                   KeyResolver
	IssuerSigningKeyResolverUsingConfiguration KeyResolverUsingConfiguration
	TokenDecryptionKeyResolver                 KeyResolver

	SignatureValidator                   SignatureValidator
	SignatureValidatorUsingConfiguration SignatureValidatorUsingConfiguration

	// TokenReader parses the token before its signature is checked.
	TokenReader func(token string, p *ValidationParameters) (*jwt.Token, error)

	// ConfigurationManager supplies the issuer and keys of the authority.
	// It is optional when keys are given directly.
	ConfigurationManager configuration.Manager

	// RefreshBeforeValidation asks the manager for a refresh before the
	// configuration is first fetched.
	RefreshBeforeValidation bool

	// CryptoProviderFactory overrides the handler's factory.
	CryptoProviderFactory cryptoprovider.ProviderFactory

	RequireSignedTokens bool

	// TryAllIssuerSigningKeys tries every known signing key when none
	// matches the token's kid or x5t.
	TryAllIssuerSigningKeys bool

	ValidAlgorithms    []string
	AlgorithmValidator func(alg string, key jwk.Key, token *jwt.Token, p *ValidationParameters) bool

	ValidateLifetime      bool
	RequireExpirationTime bool
	ClockSkew             time.Duration
	LifetimeValidator     func(notBefore, expires time.Time, token *jwt.Token, p *ValidationParameters) error

	ValidateAudience                          bool
	ValidAudience                             string
	ValidAudiences                            []string
	IgnoreTrailingSlashWhenValidatingAudience bool
	AudienceValidator                         func(audiences []string, token *jwt.Token, p *ValidationParameters) error

	ValidateIssuer  bool
	ValidIssuer     string
	ValidIssuers    []string
	IssuerValidator func(issuer string, token *jwt.Token, p *ValidationParameters) (string, error)

	ValidateTokenReplay  bool
	TokenReplayCache     replay.Cache
	TokenReplayValidator func(expires time.Time, token string, p *ValidationParameters) error

	// ValidateActor validates the token in the actor claim, using
	// ActorValidationParameters when set and these parameters otherwise.
	ValidateActor             bool
	ActorValidationParameters *ValidationParameters

	ValidateIssuerSigningKey  bool
	IssuerSigningKeyValidator func(key jwk.Key, token *jwt.Token, p *ValidationParameters) error

	ValidTypes    []string
	TypeValidator func(typ string, token *jwt.Token, p *ValidationParameters) (string, error)

	AuthenticationType string
	NameClaimType      string
	RoleClaimType      string

	// SaveSigninToken keeps the validated token on the identity.
	SaveSigninToken bool

	// IdentityBuilder replaces the default claims identity construction.
	IdentityBuilder func(token *jwt.Token, issuer string, p *ValidationParameters) *claims.Identity
}

// DefaultValidationParameters returns parameters that require a signed,
// unexpired token with a valid audience and issuer.
func DefaultValidationParameters() *ValidationParameters {
	return &ValidationParameters{
		RequireSignedTokens:     true,
		TryAllIssuerSigningKeys: true,
		ValidateLifetime:        true,
		RequireExpirationTime:   true,
		ClockSkew:               DefaultClockSkew,
		ValidateAudience:        true,
		ValidateIssuer:          true,

		IgnoreTrailingSlashWhenValidatingAudience: true,
	}
}

// Clone returns a shallow copy of p. Slices and keys are shared.
func (p *ValidationParameters) Clone() *ValidationParameters {
	c := *p
	return &c
}

func (p *ValidationParameters) signingKeys() []jwk.Key {
	keys := make([]jwk.Key, 0, len(p.IssuerSigningKeys)+1)
	if p.IssuerSigningKey != nil {
		keys = append(keys, p.IssuerSigningKey)
	}
	return append(keys, p.IssuerSigningKeys...)
}

func (p *ValidationParameters) decryptionKeys() []jwk.Key {
	keys := make([]jwk.Key, 0, len(p.TokenDecryptionKeys)+1)
	if p.TokenDecryptionKey != nil {
		keys = append(keys, p.TokenDecryptionKey)
	}
	return append(keys, p.TokenDecryptionKeys...)
}
