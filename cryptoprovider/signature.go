package cryptoprovider

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// SignatureProvider signs or verifies with one key and one algorithm.
type SignatureProvider interface {
	Algorithm() string
	Key() jwk.Key
	Sign(input []byte) ([]byte, error)
	Verify(input, signature []byte) error
	Close() error
}

// keyTypeFor maps a JWS algorithm to the key type it needs.
var keyTypeFor = map[jwa.SignatureAlgorithm]jwa.KeyType{
	jwa.HS256: jwa.OctetSeq,
	jwa.HS384: jwa.OctetSeq,
	jwa.HS512: jwa.OctetSeq,
	jwa.RS256: jwa.RSA,
	jwa.RS384: jwa.RSA,
	jwa.RS512: jwa.RSA,
	jwa.PS256: jwa.RSA,
	jwa.PS384: jwa.RSA,
	jwa.PS512: jwa.RSA,
	jwa.ES256: jwa.EC,
	jwa.ES384: jwa.EC,
	jwa.ES512: jwa.EC,
	jwa.EdDSA: jwa.OKP,
}

// IsSupportedAlgorithm reports whether alg is a known signature algorithm
// that can be used with key. "none" is never supported.
func (f *Factory) IsSupportedAlgorithm(alg string, key jwk.Key) bool {
	if key == nil {
		return false
	}
	kty, ok := keyTypeFor[jwa.SignatureAlgorithm(alg)]
	if !ok {
		return false
	}
	if kty != key.KeyType() {
		return false
	}
	if kty == jwa.OctetSeq {
		return symmetricLen(key) > 0
	}
	return true
}

// CreateForSigning returns a provider that signs with key, which must be a
// private or symmetric key.
func (f *Factory) CreateForSigning(key jwk.Key, alg string) (SignatureProvider, error) {
	if !f.IsSupportedAlgorithm(alg, key) {
		return nil, fmt.Errorf("%w: %q with key %s", ErrUnsupportedAlgorithm, alg, DescribeKey(key))
	}
	if key.KeyType() != jwa.OctetSeq {
		private, err := jwk.IsPrivateKey(key)
		if err != nil || !private {
			return nil, fmt.Errorf("key %s cannot sign: a private key is required", DescribeKey(key))
		}
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	signer, err := jws.NewSigner(jwa.SignatureAlgorithm(alg))
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return &signatureProvider{alg: alg, key: key, raw: raw, signer: signer}, nil
}

// CreateForVerifying returns a provider that verifies with the public part of
// key.
func (f *Factory) CreateForVerifying(key jwk.Key, alg string) (SignatureProvider, error) {
	if !f.IsSupportedAlgorithm(alg, key) {
		return nil, fmt.Errorf("%w: %q with key %s", ErrUnsupportedAlgorithm, alg, DescribeKey(key))
	}

	raw, err := jwk.PublicRawKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification key: %w", err)
	}

	verifier, err := jws.NewVerifier(jwa.SignatureAlgorithm(alg))
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}
	return &signatureProvider{alg: alg, key: key, raw: raw, verifier: verifier}, nil
}

type signatureProvider struct {
	alg      string
	key      jwk.Key
	raw      interface{}
	signer   jws.Signer
	verifier jws.Verifier
	closed   bool
}

func (p *signatureProvider) Algorithm() string { return p.alg }
func (p *signatureProvider) Key() jwk.Key      { return p.key }

func (p *signatureProvider) Sign(input []byte) ([]byte, error) {
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.signer == nil {
		return nil, fmt.Errorf("provider for %s was created for verification", p.alg)
	}
	return p.signer.Sign(input, p.raw)
}

func (p *signatureProvider) Verify(input, signature []byte) error {
	if p.closed {
		return ErrProviderClosed
	}
	if p.verifier == nil {
		return fmt.Errorf("provider for %s was created for signing", p.alg)
	}
	return p.verifier.Verify(input, signature, p.raw)
}

func (p *signatureProvider) Close() error {
	p.closed = true
	p.raw = nil
	return nil
}
