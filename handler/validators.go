package handler

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/cert"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// wrapValidatorError gives an error returned by a caller supplied validator
// the kind of the check it replaced, unless it already has one.
func wrapValidatorError(err error, kind error, code, message string) error {
	if errors.Is(err, tokenerr.ErrUnableToValidate) || errors.Is(err, tokenerr.ErrInvalidSignature) {
		return err
	}
	return tokenerr.New(kind, code, message, err)
}

func (h *TokenHandler) validateLifetime(token *jwt.Token, p *ValidationParameters) error {
	notBefore, err := token.Payload().GetDateTime(jwt.ClaimNotBefore)
	if err != nil {
		return tokenerr.New(tokenerr.ErrInvalidLifetime, tokenerr.CodeInvalidLifetime, "nbf claim is not a valid date", err)
	}
	expires, err := token.Payload().GetDateTime(jwt.ClaimExpires)
	if err != nil {
		return tokenerr.New(tokenerr.ErrInvalidLifetime, tokenerr.CodeInvalidLifetime, "exp claim is not a valid date", err)
	}

	if p.LifetimeValidator != nil {
		if err := p.LifetimeValidator(notBefore, expires, token, p); err != nil {
			return wrapValidatorError(err, tokenerr.ErrInvalidLifetime, tokenerr.CodeInvalidLifetime, "lifetime validation failed")
		}
		return nil
	}
	if !p.ValidateLifetime {
		return nil
	}

	if expires.IsZero() {
		if p.RequireExpirationTime {
			return tokenerr.Newf(tokenerr.ErrNoExpiration, tokenerr.CodeNoExpiration, "token has no exp claim")
		}
	} else if !notBefore.IsZero() && notBefore.After(expires) {
		return tokenerr.Newf(tokenerr.ErrInvalidLifetime, tokenerr.CodeInvalidLifetime,
			"nbf %s is after exp %s", notBefore.Format(time.RFC3339), expires.Format(time.RFC3339))
	}

	now := h.now().UTC()
	if !notBefore.IsZero() && notBefore.After(now.Add(p.ClockSkew)) {
		return tokenerr.Newf(tokenerr.ErrNotYetValid, tokenerr.CodeTokenNotYetValid,
			"token is not valid before %s, current time %s", notBefore.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if !expires.IsZero() && expires.Before(now.Add(-p.ClockSkew)) {
		return tokenerr.Newf(tokenerr.ErrExpired, tokenerr.CodeTokenExpired,
			"token expired at %s, current time %s", expires.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

func validateAudience(token *jwt.Token, p *ValidationParameters) error {
	audiences := token.Audiences()
	if p.AudienceValidator != nil {
		if err := p.AudienceValidator(audiences, token, p); err != nil {
			return wrapValidatorError(err, tokenerr.ErrInvalidAudience, tokenerr.CodeInvalidAudience, "audience validation failed")
		}
		return nil
	}
	if !p.ValidateAudience {
		return nil
	}

	if len(audiences) == 0 {
		return tokenerr.Newf(tokenerr.ErrInvalidAudience, tokenerr.CodeInvalidAudience, "token has no audience")
	}

	valid := make([]string, 0, len(p.ValidAudiences)+1)
	if p.ValidAudience != "" {
		valid = append(valid, p.ValidAudience)
	}
	valid = append(valid, p.ValidAudiences...)
	if len(valid) == 0 {
		return tokenerr.Newf(tokenerr.ErrInvalidAudience, tokenerr.CodeInvalidAudience, "no valid audiences are configured")
	}

	for _, aud := range audiences {
		for _, v := range valid {
			if audienceMatches(aud, v, p.IgnoreTrailingSlashWhenValidatingAudience) {
				return nil
			}
		}
	}
	return tokenerr.Newf(tokenerr.ErrInvalidAudience, tokenerr.CodeInvalidAudience,
		"audiences %q do not match any of %q", audiences, valid)
}

func audienceMatches(aud, valid string, ignoreTrailingSlash bool) bool {
	if aud == valid {
		return true
	}
	if !ignoreTrailingSlash {
		return false
	}
	return strings.TrimSuffix(aud, "/") == strings.TrimSuffix(valid, "/")
}

// validateIssuer returns the issuer to put on the identity's claims.
func validateIssuer(token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) (string, error) {
	issuer := token.Issuer()
	if p.IssuerValidator != nil {
		resolved, err := p.IssuerValidator(issuer, token, p)
		if err != nil {
			return "", wrapValidatorError(err, tokenerr.ErrInvalidIssuer, tokenerr.CodeInvalidIssuer, "issuer validation failed")
		}
		return resolved, nil
	}
	if !p.ValidateIssuer {
		return issuer, nil
	}

	if issuer == "" {
		return "", tokenerr.Newf(tokenerr.ErrInvalidIssuer, tokenerr.CodeInvalidIssuer, "token has no issuer")
	}
	if p.ValidIssuer == "" && len(p.ValidIssuers) == 0 && (cfg == nil || cfg.Issuer == "") {
		return "", tokenerr.Newf(tokenerr.ErrInvalidIssuer, tokenerr.CodeInvalidIssuer, "no valid issuers are configured")
	}

	if cfg != nil && cfg.Issuer == issuer {
		return issuer, nil
	}
	if p.ValidIssuer == issuer || slices.Contains(p.ValidIssuers, issuer) {
		return issuer, nil
	}
	return "", tokenerr.Newf(tokenerr.ErrInvalidIssuer, tokenerr.CodeInvalidIssuer, "issuer %q is not valid", issuer)
}

func validateTokenReplay(token *jwt.Token, p *ValidationParameters) error {
	expires := token.ValidTo()
	if p.TokenReplayValidator != nil {
		if err := p.TokenReplayValidator(expires, token.EncodedToken(), p); err != nil {
			return wrapValidatorError(err, tokenerr.ErrReplayDetected, tokenerr.CodeReplayDetected, "replay validation failed")
		}
		return nil
	}
	if !p.ValidateTokenReplay || p.TokenReplayCache == nil {
		return nil
	}

	if expires.IsZero() {
		return tokenerr.Newf(tokenerr.ErrNoExpiration, tokenerr.CodeNoExpiration, "a token without exp cannot be checked for replay")
	}
	if p.TokenReplayCache.TryFind(token.EncodedToken()) {
		return tokenerr.Newf(tokenerr.ErrReplayDetected, tokenerr.CodeReplayDetected, "token has already been used")
	}
	// Lifetime validation accepts the token until exp plus the clock skew.
	if !p.TokenReplayCache.TryAdd(token.EncodedToken(), expires.Add(p.ClockSkew)) {
		return tokenerr.Newf(tokenerr.ErrReplayAddFailed, tokenerr.CodeReplayAddFailed, "token could not be added to the replay cache")
	}
	return nil
}

func (h *TokenHandler) validateIssuerSigningKey(token *jwt.Token, p *ValidationParameters) error {
	key := token.SigningKey()
	if p.IssuerSigningKeyValidator != nil {
		if err := p.IssuerSigningKeyValidator(key, token, p); err != nil {
			return wrapValidatorError(err, tokenerr.ErrInvalidSigningKey, tokenerr.CodeInvalidSigningKey, "signing key validation failed")
		}
		return nil
	}
	if !p.ValidateIssuerSigningKey || key == nil {
		return nil
	}

	chain := key.X509CertChain()
	if chain == nil || chain.Len() == 0 {
		return nil
	}
	der, _ := chain.Get(0)
	certificate, err := cert.Parse(der)
	if err != nil {
		return tokenerr.New(tokenerr.ErrInvalidSigningKey, tokenerr.CodeInvalidSigningKey,
			"signing key certificate cannot be parsed", err)
	}

	now := h.now().UTC()
	if certificate.NotBefore.After(now.Add(p.ClockSkew)) {
		return tokenerr.Newf(tokenerr.ErrInvalidSigningKey, tokenerr.CodeInvalidSigningKey,
			"signing key %s is not valid before %s", cryptoprovider.DescribeKey(key), certificate.NotBefore.Format(time.RFC3339))
	}
	if certificate.NotAfter.Before(now.Add(-p.ClockSkew)) {
		return tokenerr.Newf(tokenerr.ErrInvalidSigningKey, tokenerr.CodeInvalidSigningKey,
			"signing key %s expired at %s", cryptoprovider.DescribeKey(key), certificate.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// validateType returns the resolved token type.
func validateType(token *jwt.Token, p *ValidationParameters) (string, error) {
	typ := token.Typ()
	if p.TypeValidator != nil {
		resolved, err := p.TypeValidator(typ, token, p)
		if err != nil {
			return "", wrapValidatorError(err, tokenerr.ErrInvalidType, tokenerr.CodeInvalidType, "type validation failed")
		}
		return resolved, nil
	}
	if len(p.ValidTypes) == 0 {
		return typ, nil
	}
	if typ == "" {
		return "", tokenerr.Newf(tokenerr.ErrInvalidType, tokenerr.CodeInvalidType, "token has no typ header")
	}
	if !slices.Contains(p.ValidTypes, typ) {
		return "", tokenerr.Newf(tokenerr.ErrInvalidType, tokenerr.CodeInvalidType, "token type %q is not one of %q", typ, p.ValidTypes)
	}
	return typ, nil
}

func validateAlgorithm(alg string, key jwk.Key, token *jwt.Token, p *ValidationParameters) error {
	if p.AlgorithmValidator != nil {
		if !p.AlgorithmValidator(alg, key, token, p) {
			return tokenerr.Newf(tokenerr.ErrInvalidAlgorithm, tokenerr.CodeInvalidAlgorithm, "algorithm %q was rejected", alg)
		}
		return nil
	}
	if len(p.ValidAlgorithms) > 0 && !slices.Contains(p.ValidAlgorithms, alg) {
		return tokenerr.Newf(tokenerr.ErrInvalidAlgorithm, tokenerr.CodeInvalidAlgorithm, "algorithm %q is not one of %q", alg, p.ValidAlgorithms)
	}
	return nil
}

// validateLifetimeAndIssuer runs when no key matched the token's kid, so that
// an expired token or a token for another issuer reports that rather than a
// missing key.
func (h *TokenHandler) validateLifetimeAndIssuer(token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) error {
	if err := h.validateLifetime(token, p); err != nil {
		return err
	}
	_, err := validateIssuer(token, p, cfg)
	return err
}
