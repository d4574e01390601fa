package handler

import (
	"maps"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/base64url"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// TokenTypeJWT is the default typ header of created tokens.
const TokenTypeJWT = "JWT"

// AlgorithmNone is the alg header of unsigned tokens.
const AlgorithmNone = "none"

// SigningCredentials is a key and the algorithm to sign with.
type SigningCredentials struct {
	Key       jwk.Key
	Algorithm string
}

// EncryptingCredentials is a key, the key management algorithm and the
// content encryption algorithm to encrypt with.
type EncryptingCredentials struct {
	Key        jwk.Key
	Algorithm  string
	Encryption string

	// TokenType overrides the typ header of the JWE. It defaults to JWT.
	TokenType string
}

// TokenDescriptor describes a token to create.
type TokenDescriptor struct {
	Issuer    string
	Subject   string
	Audience  string
	IssuedAt  time.Time
	NotBefore time.Time
	Expires   time.Time

	// Claims are added to the payload. Registered claims set on the
	// descriptor take precedence.
	Claims map[string]any

	// TokenType overrides the typ header of the signed token.
	TokenType string

	SigningCredentials    *SigningCredentials
	EncryptingCredentials *EncryptingCredentials

	// CompressionAlgorithm compresses the signed token before encryption.
	CompressionAlgorithm string

	// AdditionalHeaderClaims go into the outermost header. When the token
	// is encrypted, AdditionalInnerHeaderClaims go into the signed token's
	// header.
	AdditionalHeaderClaims      map[string]any
	AdditionalInnerHeaderClaims map[string]any
}

var (
	jwsManagedHeaders = []string{jwt.HeaderAlgorithm, jwt.HeaderKeyID, jwt.HeaderX5t, jwt.HeaderEncryption, jwt.HeaderZip, jwt.HeaderType}
	jweManagedHeaders = []string{jwt.HeaderAlgorithm, jwt.HeaderKeyID, jwt.HeaderX5t, jwt.HeaderEncryption, jwt.HeaderZip, jwt.HeaderType, jwt.HeaderContentType}
)

// CreateToken creates a signed token, encrypting it when the descriptor has
// encrypting credentials.
func (h *TokenHandler) CreateToken(d *TokenDescriptor) (string, error) {
	if d == nil {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token descriptor is required")
	}

	payload := make(map[string]any, len(d.Claims)+6)
	maps.Copy(payload, d.Claims)
	setString(payload, jwt.ClaimIssuer, d.Issuer)
	setString(payload, jwt.ClaimSubject, d.Subject)
	setString(payload, jwt.ClaimAudience, d.Audience)
	setTime(payload, jwt.ClaimIssuedAt, d.IssuedAt)
	setTime(payload, jwt.ClaimNotBefore, d.NotBefore)
	setTime(payload, jwt.ClaimExpires, d.Expires)
	h.setDefaultTimesOn(payload)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "payload cannot be serialized", err)
	}

	headerClaims := d.AdditionalHeaderClaims
	if d.EncryptingCredentials != nil {
		headerClaims = d.AdditionalInnerHeaderClaims
	}
	signed, err := h.createJWS(body, d.SigningCredentials, d.TokenType, headerClaims)
	if err != nil {
		return "", err
	}
	if d.EncryptingCredentials == nil {
		return signed, nil
	}
	return h.EncryptToken(signed, d.EncryptingCredentials, d.CompressionAlgorithm, d.AdditionalHeaderClaims)
}

// CreateTokenFromPayload signs a JSON object payload as is, apart from
// filling in missing times when enabled.
func (h *TokenHandler) CreateTokenFromPayload(payload string, signing *SigningCredentials, additionalHeaderClaims map[string]any) (string, error) {
	if payload == "" {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "payload is empty")
	}

	body := []byte(payload)
	if h.setDefaultTimes {
		var members map[string]any
		decoder := json.NewDecoder(strings.NewReader(payload))
		decoder.UseNumber()
		if err := decoder.Decode(&members); err != nil {
			return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "payload is not a JSON object", err)
		}
		if h.setDefaultTimesOn(members) {
			var err error
			if body, err = json.Marshal(members); err != nil {
				return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "payload cannot be serialized", err)
			}
		}
	}
	return h.createJWS(body, signing, "", additionalHeaderClaims)
}

// setDefaultTimesOn fills in missing iat, nbf and exp, and reports whether it
// changed anything.
func (h *TokenHandler) setDefaultTimesOn(payload map[string]any) bool {
	if !h.setDefaultTimes || payload == nil {
		return false
	}
	now := h.now().UTC()
	changed := false
	for name, at := range map[string]time.Time{
		jwt.ClaimIssuedAt:  now,
		jwt.ClaimNotBefore: now,
		jwt.ClaimExpires:   now.Add(h.tokenLifetime),
	} {
		if _, ok := payload[name]; !ok {
			payload[name] = at.Unix()
			changed = true
		}
	}
	return changed
}

func setString(payload map[string]any, name, value string) {
	if value != "" {
		payload[name] = value
	}
}

func setTime(payload map[string]any, name string, value time.Time) {
	if !value.IsZero() {
		payload[name] = value.Unix()
	}
}

func checkHeaderCollisions(additional map[string]any, managed []string) error {
	for name := range additional {
		for _, m := range managed {
			if strings.EqualFold(name, m) {
				return tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeHeaderCollision,
					"additional header claim %q collides with the managed header %q", name, m)
			}
		}
	}
	return nil
}

func (h *TokenHandler) createJWS(payload []byte, signing *SigningCredentials, typ string, additional map[string]any) (string, error) {
	if err := checkHeaderCollisions(additional, jwsManagedHeaders); err != nil {
		return "", err
	}

	header := make(map[string]any, len(additional)+4)
	maps.Copy(header, additional)
	if typ == "" {
		typ = TokenTypeJWT
	}
	header[jwt.HeaderType] = typ
	if signing == nil {
		header[jwt.HeaderAlgorithm] = AlgorithmNone
	} else {
		if signing.Key == nil || signing.Algorithm == "" {
			return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "signing credentials need a key and an algorithm")
		}
		header[jwt.HeaderAlgorithm] = signing.Algorithm
		setString(header, jwt.HeaderKeyID, signing.Key.KeyID())
		setString(header, jwt.HeaderX5t, signing.Key.X509CertThumbprint())
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "header cannot be serialized", err)
	}

	input := base64url.Encode(headerJSON) + "." + base64url.Encode(payload)
	if signing == nil {
		return input + ".", nil
	}

	provider, err := h.cryptoFactory.CreateForSigning(signing.Key, signing.Algorithm)
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "signing credentials cannot sign", err)
	}
	defer provider.Close()

	signature, err := provider.Sign([]byte(input))
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrInvalidSignature, tokenerr.CodeInvalidSignature, "failed to sign token", err)
	}
	return input + "." + base64url.Encode(signature), nil
}

// EncryptToken wraps a signed token in a JWE. compressionAlgorithm may be
// empty.
func (h *TokenHandler) EncryptToken(token string, enc *EncryptingCredentials, compressionAlgorithm string, additionalHeaderClaims map[string]any) (string, error) {
	if token == "" {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is empty")
	}
	if enc == nil || enc.Key == nil || enc.Algorithm == "" || enc.Encryption == "" {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument,
			"encrypting credentials need a key, an algorithm and an encryption")
	}
	if err := checkHeaderCollisions(additionalHeaderClaims, jweManagedHeaders); err != nil {
		return "", err
	}

	factory := h.cryptoFactory
	contentKey := enc.Key
	var wrappedKey []byte
	if !cryptoprovider.IsDirect(enc.Algorithm) {
		cek, err := factory.GenerateContentKey(enc.Encryption)
		if err != nil {
			return "", tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "failed to generate content key", err)
		}
		if wrappedKey, err = wrap(factory, enc.Key, enc.Algorithm, cek); err != nil {
			return "", tokenerr.New(tokenerr.ErrKeyWrap, tokenerr.CodeKeyWrapFailed, "failed to wrap content key", err)
		}
		if contentKey, err = cryptoprovider.SymmetricKey(cek); err != nil {
			return "", tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "failed to use content key", err)
		}
	}

	header := make(map[string]any, len(additionalHeaderClaims)+6)
	maps.Copy(header, additionalHeaderClaims)
	header[jwt.HeaderAlgorithm] = enc.Algorithm
	header[jwt.HeaderEncryption] = enc.Encryption
	typ := enc.TokenType
	if typ == "" {
		typ = TokenTypeJWT
	}
	header[jwt.HeaderType] = typ
	header[jwt.HeaderContentType] = TokenTypeJWT
	setString(header, jwt.HeaderKeyID, enc.Key.KeyID())
	setString(header, jwt.HeaderZip, compressionAlgorithm)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "header cannot be serialized", err)
	}
	encodedHeader := base64url.Encode(headerJSON)

	plaintext := []byte(token)
	if compressionAlgorithm != "" {
		if plaintext, err = h.compress(compressionAlgorithm, plaintext); err != nil {
			return "", err
		}
	}

	provider, err := factory.CreateAuthenticatedEncryptionProvider(contentKey, enc.Encryption)
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "encrypting credentials cannot encrypt", err)
	}
	defer provider.Close()

	sealed, err := provider.Encrypt(plaintext, []byte(encodedHeader))
	if err != nil {
		return "", tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "failed to encrypt token", err)
	}

	return strings.Join([]string{
		encodedHeader,
		base64url.Encode(wrappedKey),
		base64url.Encode(sealed.IV),
		base64url.Encode(sealed.Ciphertext),
		base64url.Encode(sealed.Tag),
	}, "."), nil
}

func wrap(factory cryptoprovider.ProviderFactory, key jwk.Key, alg string, cek []byte) ([]byte, error) {
	provider, err := factory.CreateKeyWrapProvider(key, alg)
	if err != nil {
		return nil, err
	}
	defer provider.Close()
	return provider.WrapKey(cek)
}

func (h *TokenHandler) compress(alg string, data []byte) ([]byte, error) {
	if !h.compressionFactory.IsSupported(alg) {
		return nil, tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "compression algorithm %q is not supported", alg)
	}
	provider, err := h.compressionFactory.Provider(alg)
	if err != nil {
		return nil, tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "failed to create compression provider", err)
	}
	out, err := provider.Compress(data)
	if err != nil {
		return nil, tokenerr.New(tokenerr.ErrEncryptionFailed, tokenerr.CodeEncryptionFailed, "failed to compress token", err)
	}
	return out, nil
}
