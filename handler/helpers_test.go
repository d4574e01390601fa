package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"

	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
)

const testIssuer = "https://issuer.example.com/"

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var (
	rsaOnce sync.Once
	rsaA    *rsa.PrivateKey
	rsaB    *rsa.PrivateKey
	rsaErr  error
)

func rsaKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	rsaOnce.Do(func() {
		if rsaA, rsaErr = rsa.GenerateKey(rand.Reader, 2048); rsaErr != nil {
			return
		}
		rsaB, rsaErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, rsaErr)
	return rsaA, rsaB
}

func keyWithID(t *testing.T, raw interface{}, kid string) jwk.Key {
	t.Helper()
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	if kid != "" {
		require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	}
	return key
}

func publicKey(t *testing.T, key jwk.Key) jwk.Key {
	t.Helper()
	public, err := key.PublicKey()
	require.NoError(t, err)
	return public
}

func symmetricKey(t *testing.T, size int, kid string) jwk.Key {
	t.Helper()
	b := make([]byte, size)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return keyWithID(t, b, kid)
}

func newTestHandler(t *testing.T, opts ...Option) *TokenHandler {
	t.Helper()
	h, err := New(append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
	require.NoError(t, err)
	return h
}

// signingFixture is an RSA key pair with kid "rsa-1" and an unrelated RSA
// key pair with kid "rsa-2".
type signingFixture struct {
	private      jwk.Key
	public       jwk.Key
	otherPrivate jwk.Key
	otherPublic  jwk.Key
}

func newSigningFixture(t *testing.T) signingFixture {
	t.Helper()
	a, b := rsaKeys(t)
	private := keyWithID(t, a, "rsa-1")
	otherPrivate := keyWithID(t, b, "rsa-2")
	return signingFixture{
		private:      private,
		public:       publicKey(t, private),
		otherPrivate: otherPrivate,
		otherPublic:  publicKey(t, otherPrivate),
	}
}

func (f signingFixture) credentials() *SigningCredentials {
	return &SigningCredentials{Key: f.private, Algorithm: "RS256"}
}

// permissiveParameters only checks the signature.
func permissiveParameters() *ValidationParameters {
	p := DefaultValidationParameters()
	p.ValidateAudience = false
	p.ValidateIssuer = false
	p.ValidateLifetime = false
	return p
}

type countingFactory struct {
	*cryptoprovider.Factory

	mu       sync.Mutex
	verified []jwk.Key
}

func (f *countingFactory) CreateForVerifying(key jwk.Key, alg string) (cryptoprovider.SignatureProvider, error) {
	f.mu.Lock()
	f.verified = append(f.verified, key)
	f.mu.Unlock()
	return f.Factory.CreateForVerifying(key, alg)
}

// sequenceRetriever returns its configurations in order, repeating the last.
type sequenceRetriever struct {
	mu      sync.Mutex
	configs []*configuration.Configuration
	err     error
	calls   int
}

func (r *sequenceRetriever) Retrieve(context.Context) (*configuration.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	i := min(r.calls, len(r.configs)) - 1
	return r.configs[i], nil
}

func (r *sequenceRetriever) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestManager(t *testing.T, r configuration.Retriever) *configuration.BaseManager {
	t.Helper()
	m, err := configuration.NewManager(r)
	require.NoError(t, err)
	return m
}
