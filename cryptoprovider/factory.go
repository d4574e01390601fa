// Package cryptoprovider creates the signature, authenticated encryption and
// key wrap providers used to sign, verify, encrypt and decrypt tokens.
//
// The primitives come from jwx (signatures), go-jose (AES-CBC-HMAC and AES key
// wrap) and the standard library (AES-GCM and RSA key transport). Providers
// are single use: callers create one per operation and Close it afterwards.
package cryptoprovider

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	// ErrUnsupportedAlgorithm is returned when the algorithm is unknown or
	// cannot be used with the given key.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrProviderClosed is returned when a provider is used after Close.
	ErrProviderClosed = errors.New("provider is closed")
)

// ProviderFactory creates providers for a key and an algorithm.
type ProviderFactory interface {
	IsSupportedAlgorithm(alg string, key jwk.Key) bool
	CreateForSigning(key jwk.Key, alg string) (SignatureProvider, error)
	CreateForVerifying(key jwk.Key, alg string) (SignatureProvider, error)

	IsSupportedEncryption(enc string, key jwk.Key) bool
	CreateAuthenticatedEncryptionProvider(key jwk.Key, enc string) (AuthenticatedEncryptionProvider, error)
	GenerateContentKey(enc string) ([]byte, error)

	IsSupportedKeyWrap(alg string, key jwk.Key) bool
	CreateKeyWrapProvider(key jwk.Key, alg string) (KeyWrapProvider, error)
}

// Factory is the default ProviderFactory.
type Factory struct {
	random io.Reader
}

var _ ProviderFactory = (*Factory)(nil)

// Option is how options for the Factory are set up.
type Option func(*Factory) error

// WithRandom sets the source of randomness used for IVs and RSA padding.
func WithRandom(r io.Reader) Option {
	return func(f *Factory) error {
		if r == nil {
			return errors.New("random source cannot be nil")
		}
		f.random = r
		return nil
	}
}

// NewFactory returns a Factory backed by crypto/rand unless told otherwise.
func NewFactory(opts ...Option) (*Factory, error) {
	f := &Factory{random: rand.Reader}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return f, nil
}

// Default returns a Factory with default options.
func Default() *Factory {
	return &Factory{random: rand.Reader}
}

// SymmetricKey wraps raw key bytes in a jwk.Key.
func SymmetricKey(b []byte) (jwk.Key, error) {
	key, err := jwk.FromRaw(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}
	return key, nil
}

// GenerateContentKey returns a random content encryption key of the size enc
// requires.
func (f *Factory) GenerateContentKey(enc string) ([]byte, error) {
	size, ok := ContentKeySize(enc)
	if !ok {
		return nil, fmt.Errorf("%w: encryption %q", ErrUnsupportedAlgorithm, enc)
	}
	cek := make([]byte, size)
	if _, err := io.ReadFull(f.random, cek); err != nil {
		return nil, fmt.Errorf("failed to generate content encryption key: %w", err)
	}
	return cek, nil
}

func symmetricBytes(key jwk.Key) ([]byte, error) {
	if key == nil || key.KeyType() != jwa.OctetSeq {
		return nil, fmt.Errorf("%w: a symmetric key is required", ErrUnsupportedAlgorithm)
	}
	var b []byte
	if err := key.Raw(&b); err != nil {
		return nil, fmt.Errorf("failed to read symmetric key: %w", err)
	}
	return b, nil
}

func symmetricLen(key jwk.Key) int {
	b, err := symmetricBytes(key)
	if err != nil {
		return -1
	}
	return len(b)
}

// DescribeKey returns a short description of key for diagnostics. It never
// contains key material.
func DescribeKey(key jwk.Key) string {
	if key == nil {
		return "<nil>"
	}
	desc := string(key.KeyType())
	if kid := key.KeyID(); kid != "" {
		desc += " kid=" + kid
	}
	if x5t := key.X509CertThumbprint(); x5t != "" {
		desc += " x5t=" + x5t
	}
	return desc
}
