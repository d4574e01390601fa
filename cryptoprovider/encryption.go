package cryptoprovider

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	josecipher "github.com/go-jose/go-jose/v4/cipher"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Content encryption algorithms.
const (
	A128CBCHS256 = "A128CBC-HS256"
	A192CBCHS384 = "A192CBC-HS384"
	A256CBCHS512 = "A256CBC-HS512"
	A128GCM      = "A128GCM"
	A192GCM      = "A192GCM"
	A256GCM      = "A256GCM"
)

var contentKeySizes = map[string]int{
	A128CBCHS256: 32,
	A192CBCHS384: 48,
	A256CBCHS512: 64,
	A128GCM:      16,
	A192GCM:      24,
	A256GCM:      32,
}

// ContentKeySize returns the key size in bytes that enc requires.
func ContentKeySize(enc string) (int, bool) {
	n, ok := contentKeySizes[enc]
	return n, ok
}

// EncryptionResult holds the parts of an encrypted payload.
type EncryptionResult struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// AuthenticatedEncryptionProvider encrypts and decrypts with one content key.
type AuthenticatedEncryptionProvider interface {
	Encryption() string
	Encrypt(plaintext, aad []byte) (*EncryptionResult, error)
	Decrypt(ciphertext, aad, iv, tag []byte) ([]byte, error)
	Close() error
}

// IsSupportedEncryption reports whether enc is known and key is a symmetric
// key of the right size.
func (f *Factory) IsSupportedEncryption(enc string, key jwk.Key) bool {
	size, ok := contentKeySizes[enc]
	return ok && symmetricLen(key) == size
}

// CreateAuthenticatedEncryptionProvider returns a provider for enc keyed by key.
func (f *Factory) CreateAuthenticatedEncryptionProvider(key jwk.Key, enc string) (AuthenticatedEncryptionProvider, error) {
	size, ok := contentKeySizes[enc]
	if !ok {
		return nil, fmt.Errorf("%w: encryption %q", ErrUnsupportedAlgorithm, enc)
	}
	cek, err := symmetricBytes(key)
	if err != nil {
		return nil, err
	}
	if len(cek) != size {
		return nil, fmt.Errorf("%w: %s requires a %d byte key, got %d", ErrUnsupportedAlgorithm, enc, size, len(cek))
	}

	var aead cipher.AEAD
	switch enc {
	case A128GCM, A192GCM, A256GCM:
		block, err := aes.NewCipher(cek)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		if aead, err = cipher.NewGCM(block); err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
	default:
		if aead, err = josecipher.NewCBCHMAC(cek, aes.NewCipher); err != nil {
			return nil, fmt.Errorf("failed to create AES-CBC-HMAC: %w", err)
		}
	}

	return &aeadProvider{
		enc:     enc,
		aead:    aead,
		tagSize: tagSize(enc, size),
		random:  f.random,
	}, nil
}

func tagSize(enc string, keySize int) int {
	switch enc {
	case A128GCM, A192GCM, A256GCM:
		return 16
	default:
		return keySize / 2
	}
}

type aeadProvider struct {
	enc     string
	aead    cipher.AEAD
	tagSize int
	random  io.Reader
}

func (p *aeadProvider) Encryption() string { return p.enc }

func (p *aeadProvider) Encrypt(plaintext, aad []byte) (*EncryptionResult, error) {
	if p.aead == nil {
		return nil, ErrProviderClosed
	}
	iv := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(p.random, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := p.aead.Seal(nil, iv, plaintext, aad)
	split := len(sealed) - p.tagSize
	return &EncryptionResult{
		IV:         iv,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

func (p *aeadProvider) Decrypt(ciphertext, aad, iv, tag []byte) ([]byte, error) {
	if p.aead == nil {
		return nil, ErrProviderClosed
	}
	if len(iv) != p.aead.NonceSize() {
		return nil, fmt.Errorf("invalid IV length %d for %s", len(iv), p.enc)
	}
	if len(tag) != p.tagSize {
		return nil, fmt.Errorf("invalid authentication tag length %d for %s", len(tag), p.enc)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := p.aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt with %s: %w", p.enc, err)
	}
	return plaintext, nil
}

func (p *aeadProvider) Close() error {
	p.aead = nil
	return nil
}
