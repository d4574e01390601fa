package jwt

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/internal/lazy"
)

// Registered header parameter names.
const (
	HeaderAlgorithm   = "alg"
	HeaderKeyID       = "kid"
	HeaderX5t         = "x5t"
	HeaderType        = "typ"
	HeaderContentType = "cty"
	HeaderEncryption  = "enc"
	HeaderZip         = "zip"
)

// Registered claim names.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpires   = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
	ClaimActor     = claims.ActorClaimType
)

// Token is a parsed JWS or JWE.
//
// A Token is immutable apart from the inner token and signing key slots, which
// are filled in by the validation engine. The two slots are not synchronized:
// set them before sharing the token between goroutines.
type Token struct {
	encoded  string
	segments int

	header  *claims.Set
	payload *claims.Set

	encodedHeader    string
	encodedPayload   string
	encodedSignature string
	signature        []byte

	// JWE only.
	headerBytes         []byte
	encodedEncryptedKey string
	encodedIV           string
	encodedCiphertext   string
	encodedTag          string
	encryptedKey        []byte
	iv                  []byte
	ciphertext          []byte
	tag                 []byte

	inner      *Token
	signingKey jwk.Key

	alg, kid, x5t, typ, cty, enc, zip lazy.Value[string]

	iss, sub, jti, actor lazy.Value[string]
	aud                  lazy.Value[[]string]
	iat, nbf, exp        lazy.Value[time.Time]
	claimList            lazy.Value[[]claims.Claim]
}

// EncodedToken returns the string the token was parsed from.
func (t *Token) EncodedToken() string { return t.encoded }

// SegmentCount returns 3 for a JWS and 5 for a JWE.
func (t *Token) SegmentCount() int { return t.segments }

// IsEncrypted reports whether the token is a JWE.
func (t *Token) IsEncrypted() bool { return t.segments == JWESegmentCount }

// Header returns the decoded protected header.
func (t *Token) Header() *claims.Set { return t.header }

// Payload returns the decoded payload. For a JWE it is the payload of the
// inner token once one is set, and an empty set before.
func (t *Token) Payload() *claims.Set {
	if t.inner != nil {
		return t.inner.Payload()
	}
	return t.payload
}

// EncodedHeader returns the first segment.
func (t *Token) EncodedHeader() string { return t.encodedHeader }

// EncodedPayload returns the second segment of a JWS, or "" for a JWE.
func (t *Token) EncodedPayload() string { return t.encodedPayload }

// EncodedSignature returns the third segment of a JWS, or "" for a JWE.
func (t *Token) EncodedSignature() string { return t.encodedSignature }

// SigningInput returns the bytes covered by a JWS signature: the encoded
// header and payload joined by a dot.
func (t *Token) SigningInput() []byte {
	return []byte(t.encodedHeader + "." + t.encodedPayload)
}

// HasSignature reports whether the signature segment is non-empty.
func (t *Token) HasSignature() bool { return t.encodedSignature != "" }

// Signature returns the decoded signature. It is never nil for a JWS.
func (t *Token) Signature() []byte { return t.signature }

// EncodedHeaderBytes returns the ASCII bytes of the encoded JWE header, used
// as additional authenticated data during decryption.
func (t *Token) EncodedHeaderBytes() []byte { return t.headerBytes }

func (t *Token) EncryptedKey() []byte         { return t.encryptedKey }
func (t *Token) InitializationVector() []byte { return t.iv }
func (t *Token) Ciphertext() []byte           { return t.ciphertext }
func (t *Token) AuthenticationTag() []byte    { return t.tag }

// InnerToken returns the token that was decrypted from a JWE, if any.
func (t *Token) InnerToken() *Token { return t.inner }

// SetInnerToken records the decrypted token.
func (t *Token) SetInnerToken(inner *Token) { t.inner = inner }

// SigningKey returns the key that verified the signature, if any.
func (t *Token) SigningKey() jwk.Key { return t.signingKey }

// SetSigningKey records the key that verified the signature.
func (t *Token) SetSigningKey(key jwk.Key) { t.signingKey = key }

func (t *Token) headerString(cell *lazy.Value[string], name string) string {
	return cell.Get(func() string { return t.header.GetString(name) })
}

// Alg returns the "alg" header parameter.
func (t *Token) Alg() string { return t.headerString(&t.alg, HeaderAlgorithm) }

// Kid returns the "kid" header parameter.
func (t *Token) Kid() string { return t.headerString(&t.kid, HeaderKeyID) }

// X5t returns the "x5t" header parameter.
func (t *Token) X5t() string { return t.headerString(&t.x5t, HeaderX5t) }

// Typ returns the "typ" header parameter.
func (t *Token) Typ() string { return t.headerString(&t.typ, HeaderType) }

// Cty returns the "cty" header parameter.
func (t *Token) Cty() string { return t.headerString(&t.cty, HeaderContentType) }

// Enc returns the "enc" header parameter of a JWE.
func (t *Token) Enc() string { return t.headerString(&t.enc, HeaderEncryption) }

// Zip returns the "zip" header parameter of a JWE.
func (t *Token) Zip() string { return t.headerString(&t.zip, HeaderZip) }

func (t *Token) payloadString(cell *lazy.Value[string], name string) string {
	return cell.Get(func() string { return t.payload.GetString(name) })
}

func (t *Token) payloadTime(cell *lazy.Value[time.Time], name string) time.Time {
	return cell.Get(func() time.Time {
		v, _ := t.payload.GetDateTime(name)
		return v
	})
}

// Issuer returns the "iss" claim.
func (t *Token) Issuer() string {
	if t.inner != nil {
		return t.inner.Issuer()
	}
	return t.payloadString(&t.iss, ClaimIssuer)
}

// Subject returns the "sub" claim.
func (t *Token) Subject() string {
	if t.inner != nil {
		return t.inner.Subject()
	}
	return t.payloadString(&t.sub, ClaimSubject)
}

// ID returns the "jti" claim.
func (t *Token) ID() string {
	if t.inner != nil {
		return t.inner.ID()
	}
	return t.payloadString(&t.jti, ClaimID)
}

// Actor returns the "actort" claim.
func (t *Token) Actor() string {
	if t.inner != nil {
		return t.inner.Actor()
	}
	return t.payloadString(&t.actor, ClaimActor)
}

// Audiences returns the "aud" claim as a list. A single string becomes a list
// of one. Non-string array members are skipped and any other shape yields an
// empty list.
func (t *Token) Audiences() []string {
	if t.inner != nil {
		return t.inner.Audiences()
	}
	return t.aud.Get(func() []string {
		v, ok := t.payload.Value(ClaimAudience)
		if !ok {
			return []string{}
		}
		switch v.Kind {
		case claims.KindString:
			return []string{v.String()}
		case claims.KindArray:
			elems, ok := claims.TryGetValue[[]claims.Value](t.payload, ClaimAudience)
			if !ok {
				return []string{}
			}
			out := make([]string, 0, len(elems))
			for _, e := range elems {
				if e.Kind == claims.KindString {
					out = append(out, e.String())
				}
			}
			return out
		default:
			return []string{}
		}
	})
}

// IssuedAt returns the "iat" claim, or the zero time when it is absent or not
// numeric.
func (t *Token) IssuedAt() time.Time {
	if t.inner != nil {
		return t.inner.IssuedAt()
	}
	return t.payloadTime(&t.iat, ClaimIssuedAt)
}

// ValidFrom returns the "nbf" claim, or the zero time.
func (t *Token) ValidFrom() time.Time {
	if t.inner != nil {
		return t.inner.ValidFrom()
	}
	return t.payloadTime(&t.nbf, ClaimNotBefore)
}

// ValidTo returns the "exp" claim, or the zero time.
func (t *Token) ValidTo() time.Time {
	if t.inner != nil {
		return t.inner.ValidTo()
	}
	return t.payloadTime(&t.exp, ClaimExpires)
}

// Claims returns the payload claims, issued by the token issuer.
func (t *Token) Claims() []claims.Claim {
	if t.inner != nil {
		return t.inner.Claims()
	}
	return t.claimList.Get(func() []claims.Claim {
		return t.payload.Claims(t.Issuer())
	})
}

// GetClaim returns the first payload claim of the given type.
func (t *Token) GetClaim(claimType string) (claims.Claim, error) {
	if c, ok := t.TryGetClaim(claimType); ok {
		return c, nil
	}
	return claims.Claim{}, fmt.Errorf("%w: %q", claims.ErrClaimNotFound, claimType)
}

// TryGetClaim is GetClaim without the error.
func (t *Token) TryGetClaim(claimType string) (claims.Claim, bool) {
	for _, c := range t.Claims() {
		if c.Type == claimType {
			return c, true
		}
	}
	return claims.Claim{}, false
}

// GetHeaderValue converts the header member key to T.
func GetHeaderValue[T any](t *Token, key string) (T, error) {
	return claims.GetValue[T](t.Header(), key)
}

// TryGetHeaderValue is GetHeaderValue without the error.
func TryGetHeaderValue[T any](t *Token, key string) (T, bool) {
	return claims.TryGetValue[T](t.Header(), key)
}

// GetPayloadValue converts the payload member key to T.
func GetPayloadValue[T any](t *Token, key string) (T, error) {
	return claims.GetValue[T](t.Payload(), key)
}

// TryGetPayloadValue is GetPayloadValue without the error.
func TryGetPayloadValue[T any](t *Token, key string) (T, bool) {
	return claims.TryGetValue[T](t.Payload(), key)
}
