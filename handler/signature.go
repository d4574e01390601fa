package handler

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// validateSignature parses token, or takes read when it is not nil, and
// verifies its signature. On success the returned token has its signing key
// set, unless it is unsigned.
func (h *TokenHandler) validateSignature(token string, read *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) (*jwt.Token, error) {
	if p.SignatureValidatorUsingConfiguration != nil {
		parsed, err := p.SignatureValidatorUsingConfiguration(token, p, cfg)
		return delegatedSignature(parsed, err)
	}
	if p.SignatureValidator != nil {
		parsed, err := p.SignatureValidator(token, p)
		return delegatedSignature(parsed, err)
	}

	parsed := read
	switch {
	case parsed != nil:
	case p.TokenReader != nil:
		var err error
		if parsed, err = p.TokenReader(token, p); err != nil {
			return nil, tokenerr.New(tokenerr.ErrParse, tokenerr.CodeMalformed, "token reader failed", err)
		}
		if parsed == nil || parsed.IsEncrypted() {
			return nil, tokenerr.Newf(tokenerr.ErrInvalidSignature, tokenerr.CodeInvalidSignature,
				"token reader did not return a signed token")
		}
	default:
		var err error
		if parsed, err = jwt.Parse(token); err != nil {
			return nil, err
		}
	}

	if !parsed.HasSignature() {
		if p.RequireSignedTokens {
			return nil, tokenerr.Newf(tokenerr.ErrInvalidSignature, tokenerr.CodeUnsignedToken,
				"token has no signature but signed tokens are required")
		}
		return parsed, nil
	}

	kid, x5t := parsed.Kid(), parsed.X5t()
	var keys []jwk.Key
	kidExists := false
	switch {
	case p.IssuerSigningKeyResolverUsingConfiguration != nil:
		keys = p.IssuerSigningKeyResolverUsingConfiguration(token, parsed, kid, p, cfg)
	case p.IssuerSigningKeyResolver != nil:
		keys = p.IssuerSigningKeyResolver(token, parsed, kid, p)
	default:
		if key := resolveSigningKey(kid, x5t, p, cfg); key != nil {
			kidExists = true
			keys = []jwk.Key{key}
		}
	}
	if len(keys) == 0 && p.TryAllIssuerSigningKeys {
		keys = allSigningKeys(p, cfg)
	}

	factory := h.cryptoFactoryFor(p)
	alg := parsed.Alg()
	input := parsed.SigningInput()
	signature := parsed.Signature()

	var errs *multierror.Error
	var attempted []string
	kidMatched := false

	for _, key := range keys {
		if key == nil {
			continue
		}
		desc := cryptoprovider.DescribeKey(key)
		attempted = append(attempted, desc)
		if kid != "" && !kidMatched {
			kidMatched = keyIDMatches(key, kid)
		}

		if !factory.IsSupportedAlgorithm(alg, key) {
			h.logger.Debugf("skipping key %s: algorithm %q is not supported with it", desc, alg)
			continue
		}
		if err := validateAlgorithm(alg, key, parsed, p); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %s: %w", desc, err))
			continue
		}
		if err := verify(factory, key, alg, input, signature); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %s: %w", desc, err))
			continue
		}

		parsed.SetSigningKey(key)
		return parsed, nil
	}

	if kidExists || (kid != "" && kidMatched) {
		code := tokenerr.CodeKidMatchedConfiguration
		side := "configuration"
		if keyIDInList(p.signingKeys(), kid, x5t) {
			code = tokenerr.CodeKidMatchedParameters
			side = "validation parameters"
		}
		return nil, tokenerr.New(tokenerr.ErrInvalidSignature, code,
			fmt.Sprintf("signature validation failed with the key matching kid %q from the %s", firstNonEmpty(kid, x5t), side),
			errs.ErrorOrNil())
	}

	if kid != "" {
		if err := h.validateLifetimeAndIssuer(parsed, p, cfg); err != nil {
			return nil, err
		}
	}

	if len(attempted) == 0 {
		return nil, tokenerr.Newf(tokenerr.ErrNoSigningKeys, tokenerr.CodeNoSigningKeys,
			"no signing keys are available to validate the token (kid %q)", kid)
	}
	return nil, tokenerr.New(tokenerr.ErrSignatureKeyNotFound, tokenerr.CodeSignatureKeyNotFound,
		fmt.Sprintf("signature validation failed, no key matched kid %q; keys tried: %s", kid, strings.Join(attempted, ", ")),
		errs.ErrorOrNil())
}

func delegatedSignature(parsed *jwt.Token, err error) (*jwt.Token, error) {
	if err != nil {
		return nil, wrapValidatorError(err, tokenerr.ErrInvalidSignature, tokenerr.CodeInvalidSignature, "signature validator failed")
	}
	if parsed == nil || parsed.IsEncrypted() {
		return nil, tokenerr.Newf(tokenerr.ErrInvalidSignature, tokenerr.CodeInvalidSignature,
			"signature validator did not return a signed token")
	}
	return parsed, nil
}

func verify(factory cryptoprovider.ProviderFactory, key jwk.Key, alg string, input, signature []byte) error {
	provider, err := factory.CreateForVerifying(key, alg)
	if err != nil {
		return err
	}
	defer provider.Close()
	return provider.Verify(input, signature)
}

// isX509Key reports whether key carries a certificate, in which case its key
// id is compared case-insensitively.
func isX509Key(key jwk.Key) bool {
	if key.X509CertThumbprint() != "" {
		return true
	}
	chain := key.X509CertChain()
	return chain != nil && chain.Len() > 0
}

func keyIDMatches(key jwk.Key, kid string) bool {
	if kid == "" {
		return false
	}
	if isX509Key(key) {
		return strings.EqualFold(key.KeyID(), kid)
	}
	return key.KeyID() == kid
}

func thumbprintMatches(key jwk.Key, x5t string) bool {
	if x5t == "" {
		return false
	}
	return strings.EqualFold(key.X509CertThumbprint(), x5t) || (isX509Key(key) && strings.EqualFold(key.KeyID(), x5t))
}

func matchKey(keys []jwk.Key, kid, x5t string) jwk.Key {
	for _, key := range keys {
		if key != nil && keyIDMatches(key, kid) {
			return key
		}
	}
	for _, key := range keys {
		if key != nil && thumbprintMatches(key, x5t) {
			return key
		}
	}
	return nil
}

func keyIDInList(keys []jwk.Key, kid, x5t string) bool {
	return matchKey(keys, kid, x5t) != nil
}

// resolveSigningKey finds the key named by kid, or by x5t, among the keys of
// the parameters and then the configuration.
func resolveSigningKey(kid, x5t string, p *ValidationParameters, cfg *configuration.Configuration) jwk.Key {
	if key := matchKey(p.signingKeys(), kid, x5t); key != nil {
		return key
	}
	if cfg != nil {
		return matchKey(cfg.SigningKeys, kid, x5t)
	}
	return nil
}

func allSigningKeys(p *ValidationParameters, cfg *configuration.Configuration) []jwk.Key {
	keys := p.signingKeys()
	if cfg != nil {
		keys = append(keys, cfg.SigningKeys...)
	}
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
