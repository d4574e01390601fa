package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(responseCode int, responseBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(responseCode)
		_, _ = w.Write([]byte(responseBody))
	}))
}

func Test_GetWellKnownEndpointsFromIssuerURL(t *testing.T) {
	const issuer = "https://login.example.com/"

	testCases := []struct {
		name           string
		responseCode   int
		responseBody   string
		expectedIssuer string
		expectedError  string
	}{
		{
			name:           "it reads the jwks uri and issuer",
			responseCode:   http.StatusOK,
			responseBody:   `{"issuer":"https://login.example.com/","jwks_uri":"https://login.example.com/keys"}`,
			expectedIssuer: issuer,
		},
		{
			name:         "the issuer is not checked when none is expected",
			responseCode: http.StatusOK,
			responseBody: `{"jwks_uri":"https://login.example.com/keys"}`,
		},
		{
			name:          "it fails on a non 200 status",
			responseCode:  http.StatusInternalServerError,
			responseBody:  `oops`,
			expectedError: "returned status 500",
		},
		{
			name:          "it fails on malformed JSON",
			responseCode:  http.StatusOK,
			responseBody:  `{"jwks_uri": "https://login.example.com/keys"`,
			expectedError: "failed to decode JSON",
		},
		{
			name:          "it fails on an empty body",
			responseCode:  http.StatusOK,
			expectedError: "failed to decode JSON",
		},
		{
			name:           "it requires the jwks uri",
			responseCode:   http.StatusOK,
			responseBody:   `{"issuer":"https://login.example.com/"}`,
			expectedIssuer: issuer,
			expectedError:  "missing required 'jwks_uri' field",
		},
		{
			name:           "it requires the issuer when one is expected",
			responseCode:   http.StatusOK,
			responseBody:   `{"jwks_uri":"https://login.example.com/keys"}`,
			expectedIssuer: issuer,
			expectedError:  "missing required 'issuer' field",
		},
		{
			name:           "it rejects a document for another issuer",
			responseCode:   http.StatusOK,
			responseBody:   `{"issuer":"https://attacker.example.com/","jwks_uri":"https://attacker.example.com/keys"}`,
			expectedIssuer: issuer,
			expectedError:  "issuer mismatch",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := setupTestServer(testCase.responseCode, testCase.responseBody)
			defer server.Close()

			issuerURL, err := url.Parse(server.URL)
			require.NoError(t, err)

			endpoints, err := GetWellKnownEndpointsFromIssuerURL(context.Background(), server.Client(), *issuerURL, testCase.expectedIssuer)
			if testCase.expectedError != "" {
				assert.ErrorContains(t, err, testCase.expectedError)
				assert.Nil(t, endpoints)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://login.example.com/keys", endpoints.JWKSURI)
			if testCase.expectedIssuer != "" {
				assert.Equal(t, testCase.expectedIssuer, endpoints.Issuer)
			}
		})
	}
}

func Test_GetWellKnownEndpointsFromIssuerURL_Transport(t *testing.T) {
	t.Run("it fails when the request cannot be built", func(t *testing.T) {
		_, err := GetWellKnownEndpointsFromIssuerURL(context.Background(), http.DefaultClient, url.URL{Scheme: ":"}, "")
		assert.ErrorContains(t, err, "could not build request to get well-known endpoints")
	})

	t.Run("it honours the client timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		client := &http.Client{Timeout: 50 * time.Millisecond}
		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(context.Background(), client, *issuerURL, "")
		assert.ErrorContains(t, err, "could not fetch well-known endpoints")
	})

	t.Run("it honours context cancellation", func(t *testing.T) {
		server := setupTestServer(http.StatusOK, `{"jwks_uri":"https://login.example.com/keys"}`)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		issuerURL, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = GetWellKnownEndpointsFromIssuerURL(ctx, server.Client(), *issuerURL, "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
