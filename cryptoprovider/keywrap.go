package cryptoprovider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	josecipher "github.com/go-jose/go-jose/v4/cipher"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Key management algorithms.
const (
	Direct     = "dir"
	A128KW     = "A128KW"
	A192KW     = "A192KW"
	A256KW     = "A256KW"
	RSAOAEP    = "RSA-OAEP"
	RSAOAEP256 = "RSA-OAEP-256"
	RSA15      = "RSA1_5"
)

var aesKeyWrapSizes = map[string]int{
	A128KW: 16,
	A192KW: 24,
	A256KW: 32,
}

// KeyWrapProvider wraps and unwraps content encryption keys.
type KeyWrapProvider interface {
	Algorithm() string
	Key() jwk.Key
	WrapKey(cek []byte) ([]byte, error)
	UnwrapKey(wrapped []byte) ([]byte, error)
	Close() error
}

// SessionKeyUnwrapper is implemented by key wrap providers whose unwrap
// failures must not be observable. UnwrapSessionKey returns a key of size
// bytes even when wrapped does not hold one, so that the failure surfaces
// only when the content is decrypted.
type SessionKeyUnwrapper interface {
	UnwrapSessionKey(wrapped []byte, size int) ([]byte, error)
}

// IsDirect reports whether alg uses the resolved key as the content key.
func IsDirect(alg string) bool {
	return alg == Direct
}

// IsSupportedKeyWrap reports whether alg can wrap keys with key. The direct
// algorithm has no wrap step and is not reported as supported.
func (f *Factory) IsSupportedKeyWrap(alg string, key jwk.Key) bool {
	if key == nil {
		return false
	}
	if size, ok := aesKeyWrapSizes[alg]; ok {
		return symmetricLen(key) == size
	}
	switch alg {
	case RSAOAEP, RSAOAEP256, RSA15:
		return key.KeyType() == jwa.RSA
	}
	return false
}

// CreateKeyWrapProvider returns a provider that wraps with alg and key.
// Unwrapping with an RSA algorithm requires a private key.
func (f *Factory) CreateKeyWrapProvider(key jwk.Key, alg string) (KeyWrapProvider, error) {
	if !f.IsSupportedKeyWrap(alg, key) {
		return nil, fmt.Errorf("%w: key wrap %q with key %s", ErrUnsupportedAlgorithm, alg, DescribeKey(key))
	}

	if _, ok := aesKeyWrapSizes[alg]; ok {
		kek, err := symmetricBytes(key)
		if err != nil {
			return nil, err
		}
		block, err := aes.NewCipher(kek)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		return &aesKeyWrapProvider{alg: alg, key: key, block: block}, nil
	}

	p := &rsaKeyWrapProvider{alg: alg, key: key, random: f.random}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to read RSA key: %w", err)
	}
	switch k := raw.(type) {
	case *rsa.PrivateKey:
		p.private = k
		p.public = &k.PublicKey
	case *rsa.PublicKey:
		p.public = k
	default:
		return nil, fmt.Errorf("%w: unexpected RSA key type %T", ErrUnsupportedAlgorithm, raw)
	}
	return p, nil
}

type aesKeyWrapProvider struct {
	alg   string
	key   jwk.Key
	block cipher.Block
}

func (p *aesKeyWrapProvider) Algorithm() string { return p.alg }
func (p *aesKeyWrapProvider) Key() jwk.Key      { return p.key }

func (p *aesKeyWrapProvider) WrapKey(cek []byte) ([]byte, error) {
	if p.block == nil {
		return nil, ErrProviderClosed
	}
	return josecipher.KeyWrap(p.block, cek)
}

func (p *aesKeyWrapProvider) UnwrapKey(wrapped []byte) ([]byte, error) {
	if p.block == nil {
		return nil, ErrProviderClosed
	}
	return josecipher.KeyUnwrap(p.block, wrapped)
}

func (p *aesKeyWrapProvider) Close() error {
	p.block = nil
	return nil
}

type rsaKeyWrapProvider struct {
	alg     string
	key     jwk.Key
	public  *rsa.PublicKey
	private *rsa.PrivateKey
	random  io.Reader
	closed  bool
}

func (p *rsaKeyWrapProvider) Algorithm() string { return p.alg }
func (p *rsaKeyWrapProvider) Key() jwk.Key      { return p.key }

func (p *rsaKeyWrapProvider) oaepHash() hash.Hash {
	if p.alg == RSAOAEP256 {
		return sha256.New()
	}
	return sha1.New()
}

func (p *rsaKeyWrapProvider) WrapKey(cek []byte) ([]byte, error) {
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.alg == RSA15 {
		return rsa.EncryptPKCS1v15(p.random, p.public, cek)
	}
	return rsa.EncryptOAEP(p.oaepHash(), p.random, p.public, cek, nil)
}

// UnwrapKey reports RSA1_5 padding failures as errors. Callers that expose
// the outcome to the token's sender use UnwrapSessionKey.
func (p *rsaKeyWrapProvider) UnwrapKey(wrapped []byte) ([]byte, error) {
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.private == nil {
		return nil, fmt.Errorf("key %s cannot unwrap: a private key is required", DescribeKey(p.key))
	}
	if p.alg == RSA15 {
		return rsa.DecryptPKCS1v15(p.random, p.private, wrapped)
	}
	return rsa.DecryptOAEP(p.oaepHash(), p.random, p.private, wrapped, nil)
}

// UnwrapSessionKey unwraps an RSA1_5 content key without revealing whether
// the padding was valid: a random key of size bytes stands in for a wrapped
// key that cannot be decrypted. Other algorithms unwrap as UnwrapKey does.
func (p *rsaKeyWrapProvider) UnwrapSessionKey(wrapped []byte, size int) ([]byte, error) {
	if p.alg != RSA15 {
		return p.UnwrapKey(wrapped)
	}
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.private == nil {
		return nil, fmt.Errorf("key %s cannot unwrap: a private key is required", DescribeKey(p.key))
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid content key size %d", size)
	}

	cek := make([]byte, size)
	if _, err := io.ReadFull(p.random, cek); err != nil {
		return nil, fmt.Errorf("failed to generate content key: %w", err)
	}
	_ = rsa.DecryptPKCS1v15SessionKey(p.random, p.private, wrapped, cek)
	return cek, nil
}

func (p *rsaKeyWrapProvider) Close() error {
	p.closed = true
	p.private = nil
	return nil
}
