package configuration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeySet(t *testing.T) []byte {
	t.Helper()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signing, err := jwk.FromRaw(&rsaKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, signing.Set(jwk.KeyIDKey, "sig-1"))
	require.NoError(t, signing.Set(jwk.KeyUsageKey, jwk.ForSignature))

	unmarked, err := jwk.FromRaw(&rsaKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, unmarked.Set(jwk.KeyIDKey, "sig-2"))

	encryption, err := jwk.FromRaw(&rsaKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, encryption.Set(jwk.KeyIDKey, "enc-1"))
	require.NoError(t, encryption.Set(jwk.KeyUsageKey, jwk.ForEncryption))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(signing))
	require.NoError(t, set.AddKey(unmarked))
	require.NoError(t, set.AddKey(encryption))

	b, err := json.Marshal(set)
	require.NoError(t, err)
	return b
}

func setupIssuerServer(t *testing.T, cacheControl string) *httptest.Server {
	t.Helper()
	keySet := testKeySet(t)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"issuer":"` + server.URL + `","jwks_uri":"` + server.URL + `/keys"}`))
		case "/keys":
			if cacheControl != "" {
				w.Header().Set("Cache-Control", cacheControl)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(keySet)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func keyIDs(keys []jwk.Key) []string {
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key.KeyID())
	}
	return ids
}

func Test_HTTPRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("it discovers keys through the issuer", func(t *testing.T) {
		server := setupIssuerServer(t, "public, max-age=7200")
		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		r, err := NewOIDCRetriever(issuerURL, WithHTTPClient(server.Client()))
		require.NoError(t, err)

		cfg, err := r.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, server.URL, cfg.Issuer)
		assert.Equal(t, server.URL+"/keys", cfg.JWKSURI)
		assert.Equal(t, []string{"sig-1", "sig-2"}, keyIDs(cfg.SigningKeys))
		assert.Equal(t, []string{"enc-1"}, keyIDs(cfg.TokenDecryptionKeys))
		assert.Equal(t, 2*time.Hour, cfg.MaxAge)
	})

	t.Run("it rejects a discovery document for another issuer", func(t *testing.T) {
		server := setupIssuerServer(t, "")
		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		r, err := NewOIDCRetriever(issuerURL, WithHTTPClient(server.Client()), WithExpectedIssuer("https://other.example.com"))
		require.NoError(t, err)

		_, err = r.Retrieve(ctx)
		assert.ErrorContains(t, err, "issuer mismatch")
	})

	t.Run("it reads a key set uri directly", func(t *testing.T) {
		server := setupIssuerServer(t, "")
		jwksURI, err := url.Parse(server.URL + "/keys")
		require.NoError(t, err)

		r, err := NewJWKSRetriever(jwksURI, WithHTTPClient(server.Client()), WithExpectedIssuer("https://issuer.example.com"))
		require.NoError(t, err)

		cfg, err := r.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://issuer.example.com", cfg.Issuer)
		assert.Len(t, cfg.SigningKeys, 2)
		assert.Zero(t, cfg.MaxAge)
	})

	t.Run("it fails on a missing key set", func(t *testing.T) {
		server := setupIssuerServer(t, "")
		jwksURI, err := url.Parse(server.URL + "/missing")
		require.NoError(t, err)

		r, err := NewJWKSRetriever(jwksURI, WithHTTPClient(server.Client()))
		require.NoError(t, err)

		_, err = r.Retrieve(ctx)
		assert.EqualError(t, err, "could not fetch JWKS: request returned status 404, expected 200")
	})

	t.Run("it validates its options", func(t *testing.T) {
		_, err := NewOIDCRetriever(nil)
		assert.EqualError(t, err, "issuer url is required but was nil")

		_, err = NewJWKSRetriever(nil)
		assert.EqualError(t, err, "jwks uri is required but was nil")

		_, err = NewJWKSRetriever(&url.URL{}, WithHTTPClient(nil))
		assert.EqualError(t, err, "invalid option: http client cannot be nil")

		_, err = NewOIDCRetriever(&url.URL{}, WithExpectedIssuer(""))
		assert.EqualError(t, err, "invalid option: expected issuer cannot be empty")
	})

	t.Run("it works with a manager", func(t *testing.T) {
		server := setupIssuerServer(t, "")
		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		r, err := NewOIDCRetriever(issuerURL, WithHTTPClient(server.Client()))
		require.NoError(t, err)
		m, err := NewManager(r)
		require.NoError(t, err)

		cfg, err := m.GetConfiguration(ctx)
		require.NoError(t, err)
		assert.Len(t, cfg.SigningKeys, 2)
	})
}

func Test_parseCacheControl(t *testing.T) {
	testCases := []struct {
		header   string
		expected time.Duration
	}{
		{header: "max-age=3600", expected: time.Hour},
		{header: "public, max-age=60, must-revalidate", expected: time.Minute},
		{header: "max-age=0", expected: 0},
		{header: "max-age=abc", expected: 0},
		{header: "max-age=999999999", expected: 0},
		{header: "no-cache", expected: 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.header, func(t *testing.T) {
			assert.Equal(t, testCase.expected, parseCacheControl(testCase.header))
		})
	}
}
