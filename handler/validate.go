package handler

import (
	"context"
	"errors"
	"time"

	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// ValidateToken validates a compact JWS or JWE. It never panics on bad input
// and never returns an error: failures are reported in the result.
//
// ctx is passed to the configuration manager and cancels its fetches.
func (h *TokenHandler) ValidateToken(ctx context.Context, token string, p *ValidationParameters) *ValidationResult {
	return h.validate(ctx, token, nil, p)
}

// ValidateParsedToken validates a token that has already been read. The
// result carries token itself, so its signing key and, for a JWE, its inner
// token are set on the caller's instance.
func (h *TokenHandler) ValidateParsedToken(ctx context.Context, token *jwt.Token, p *ValidationParameters) *ValidationResult {
	if token == nil {
		return invalidResult(tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is nil"), nil)
	}
	return h.validate(ctx, token.EncodedToken(), token, p)
}

func (h *TokenHandler) validate(ctx context.Context, token string, read *jwt.Token, p *ValidationParameters) *ValidationResult {
	start := h.now()
	ctx, span := h.startSpan(ctx, "jsonwebtoken.ValidateToken", token)

	result := h.validateToken(ctx, token, read, p)

	h.endSpan(span, result)
	h.record(result, start)
	return result
}

func (h *TokenHandler) record(result *ValidationResult, start time.Time) {
	outcome := "valid"
	if !result.IsValid {
		outcome = tokenerr.CodeOf(result.Err)
		if outcome == "" {
			outcome = "invalid"
		}
	}
	tags := map[string]string{"result": outcome}
	h.metrics.IncCounter(MetricValidations, tags)
	h.metrics.ObserveHistogram(MetricValidationDuration, h.now().Sub(start).Seconds(), tags)
}

// validateToken validates token. read, when not nil, is token already parsed
// and is used in place of parsing it again.
func (h *TokenHandler) validateToken(ctx context.Context, token string, read *jwt.Token, p *ValidationParameters) *ValidationResult {
	if token == "" {
		return invalidResult(tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is empty"), nil)
	}
	if p == nil {
		return invalidResult(tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "validation parameters are required"), nil)
	}
	if len(token) > h.maximumTokenSize {
		return invalidResult(tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeTooLarge,
			"token is %d bytes, larger than the maximum of %d", len(token), h.maximumTokenSize), nil)
	}

	switch jwt.SegmentCount(token) {
	case jwt.JWSSegmentCount:
		return h.validateJWS(ctx, token, read, p)
	case jwt.JWESegmentCount:
		outer := read
		if outer == nil {
			var err error
			if outer, err = jwt.Parse(token); err != nil {
				return invalidResult(err, nil)
			}
		}
		return h.validateJWE(ctx, outer, p)
	default:
		return invalidResult(tokenerr.Newf(tokenerr.ErrParse, tokenerr.CodeMalformed,
			"token must have 3 or 5 segments, found %d", jwt.SegmentCount(token)), nil)
	}
}

// validateJWE decrypts outer with the current configuration's keys and
// validates the JWS inside it.
func (h *TokenHandler) validateJWE(ctx context.Context, outer *jwt.Token, p *ValidationParameters) *ValidationResult {
	var cfg *configuration.Configuration
	if p.ConfigurationManager != nil {
		cfg = h.fetchConfiguration(ctx, p.ConfigurationManager)
	}

	decrypted, err := h.decryptToken(outer, p, cfg)
	if err != nil {
		return invalidResult(err, outer)
	}
	if len(decrypted) > h.maximumTokenSize {
		return invalidResult(tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeTooLarge,
			"decrypted token is %d bytes, larger than the maximum of %d", len(decrypted), h.maximumTokenSize), outer)
	}
	if jwt.SegmentCount(decrypted) != jwt.JWSSegmentCount {
		return invalidResult(tokenerr.Newf(tokenerr.ErrParse, tokenerr.CodeMalformed,
			"decrypted token must be a JWS, found %d segments", jwt.SegmentCount(decrypted)), outer)
	}

	inner := h.validateJWS(ctx, decrypted, nil, p)
	if !inner.IsValid {
		return inner
	}

	outer.SetInnerToken(inner.SecurityToken)
	return &ValidationResult{
		IsValid:       true,
		SecurityToken: outer,
		TokenType:     inner.TokenType,
		Issuer:        inner.Issuer,
		Configuration: inner.Configuration,
		build:         inner.ClaimsIdentity,
	}
}

// validateJWS validates a signed token, retrying against the last-known-good
// configuration and then a refreshed one when the key or issuer is unknown.
func (h *TokenHandler) validateJWS(ctx context.Context, token string, read *jwt.Token, p *ValidationParameters) *ValidationResult {
	mgr := p.ConfigurationManager

	var cfg *configuration.Configuration
	if mgr != nil {
		if p.RefreshBeforeValidation {
			mgr.RequestRefresh()
		}
		cfg = h.fetchConfiguration(ctx, mgr)
	}

	result := h.validateJWSWithConfiguration(ctx, token, read, p, cfg)
	if result.IsValid {
		h.promote(mgr, cfg)
		return result
	}
	if mgr == nil || !isRecoverable(result.Err) {
		return result
	}

	if mgr.UseLastKnownGood() {
		if lkg := mgr.LastKnownGoodConfiguration(); lkg != nil && lkg != cfg {
			h.logger.Infof("token failed against the current configuration, trying the last known good one: %v", result.Err)

			result = h.validateJWSWithConfiguration(ctx, token, read, p, lkg)
			if result.IsValid {
				if setter, ok := mgr.(currentConfigurationSetter); ok {
					setter.SetCurrentConfiguration(lkg)
				}
				return result
			}
		}
	}

	if cfg != nil {
		mgr.RequestRefresh()
		if refreshed := h.fetchConfiguration(ctx, mgr); refreshed != nil && refreshed != cfg {
			h.logger.Infof("token failed against the cached configuration, trying a refreshed one")

			result = h.validateJWSWithConfiguration(ctx, token, read, p, refreshed)
			if result.IsValid {
				h.promote(mgr, refreshed)
			}
			return result
		}
	}
	return result
}

// currentConfigurationSetter is implemented by managers that accept a
// configuration promoted back to current.
type currentConfigurationSetter interface {
	SetCurrentConfiguration(c *configuration.Configuration)
}

func isRecoverable(err error) bool {
	return errors.Is(err, tokenerr.ErrKeyNotFound) || errors.Is(err, tokenerr.ErrInvalidIssuer)
}

func (h *TokenHandler) fetchConfiguration(ctx context.Context, mgr configuration.Manager) *configuration.Configuration {
	cfg, err := mgr.GetConfiguration(ctx)
	if err != nil {
		h.logger.Warnf("failed to get configuration, continuing without it: %v", err)
		return nil
	}
	return cfg
}

func (h *TokenHandler) promote(mgr configuration.Manager, cfg *configuration.Configuration) {
	if mgr == nil || cfg == nil || mgr.LastKnownGoodConfiguration() == cfg {
		return
	}
	mgr.SetLastKnownGoodConfiguration(cfg)
}

// validateJWSWithConfiguration is one validation attempt.
func (h *TokenHandler) validateJWSWithConfiguration(ctx context.Context, token string, read *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) *ValidationResult {
	parsed, err := h.validateSignature(token, read, p, cfg)
	if err != nil {
		return invalidResult(err, nil)
	}
	return h.validatePayload(ctx, parsed, p, cfg)
}

func (h *TokenHandler) validatePayload(ctx context.Context, token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) *ValidationResult {
	if err := h.validateLifetime(token, p); err != nil {
		return invalidResult(err, token)
	}
	if err := validateAudience(token, p); err != nil {
		return invalidResult(err, token)
	}
	issuer, err := validateIssuer(token, p, cfg)
	if err != nil {
		return invalidResult(err, token)
	}
	if err := validateTokenReplay(token, p); err != nil {
		return invalidResult(err, token)
	}

	if actor := token.Actor(); actor != "" && p.ValidateActor {
		actorParams := p.ActorValidationParameters
		if actorParams == nil {
			actorParams = p
		}
		if actorResult := h.validateToken(ctx, actor, nil, actorParams); !actorResult.IsValid {
			return invalidResult(actorResult.Err, token)
		}
	}

	if err := h.validateIssuerSigningKey(token, p); err != nil {
		return invalidResult(err, token)
	}
	typ, err := validateType(token, p)
	if err != nil {
		return invalidResult(err, token)
	}

	return &ValidationResult{
		IsValid:       true,
		SecurityToken: token,
		TokenType:     typ,
		Issuer:        issuer,
		Configuration: cfg,
		build: func() *claims.Identity {
			return h.createClaimsIdentity(token, issuer, p)
		},
	}
}

// createClaimsIdentity builds the identity of a validated token. A readable
// actor claim becomes the identity's actor.
func (h *TokenHandler) createClaimsIdentity(token *jwt.Token, issuer string, p *ValidationParameters) *claims.Identity {
	if p.IdentityBuilder != nil {
		return p.IdentityBuilder(token, issuer, p)
	}

	if issuer == "" {
		issuer = claims.DefaultIssuer
	}
	authenticationType := p.AuthenticationType
	if authenticationType == "" {
		authenticationType = DefaultAuthenticationType
	}

	identity := claims.NewIdentity(authenticationType, p.NameClaimType, p.RoleClaimType)
	if p.SaveSigninToken {
		identity.BootstrapContext = token.EncodedToken()
	}

	for _, c := range token.Payload().Claims(issuer) {
		if c.Type == jwt.ClaimActor && identity.Actor == nil && h.CanReadToken(c.Value) {
			if actor, err := jwt.Parse(c.Value); err == nil {
				identity.Actor = h.createClaimsIdentity(actor, issuer, p)
			} else {
				h.logger.Debugf("actor claim could not be read: %v", err)
			}
		}
		identity.AddClaim(c)
	}
	return identity
}
