package jsonwebtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/handler"
)

const (
	testIssuer   = "https://issuer.example.com/"
	testAudience = "https://api.example.com"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testTokens signs HS256 tokens for testIssuer and testAudience and returns
// a handler and parameters that accept them.
type testTokens struct {
	handler *handler.TokenHandler
	params  *handler.ValidationParameters
	signing *handler.SigningCredentials
}

func newTestTokens(t *testing.T) testTokens {
	t.Helper()

	key, err := cryptoprovider.SymmetricKey([]byte("a-string-secret-at-least-256-bits-long"))
	require.NoError(t, err)

	h, err := handler.New(handler.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	params := handler.DefaultValidationParameters()
	params.IssuerSigningKey = key
	params.ValidIssuer = testIssuer
	params.ValidAudience = testAudience

	return testTokens{
		handler: h,
		params:  params,
		signing: &handler.SigningCredentials{Key: key, Algorithm: "HS256"},
	}
}

func (tt testTokens) create(t *testing.T, subject string, expires time.Time) string {
	t.Helper()
	token, err := tt.handler.CreateToken(&handler.TokenDescriptor{
		Issuer:             testIssuer,
		Audience:           testAudience,
		Subject:            subject,
		IssuedAt:           expires.Add(-2 * time.Hour),
		NotBefore:          expires.Add(-2 * time.Hour),
		Expires:            expires,
		SigningCredentials: tt.signing,
	})
	require.NoError(t, err)
	return token
}
