package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/goccy/go-json"
)

// maxDocumentSize bounds the discovery document read from the network.
const maxDocumentSize = 1 << 20

// WellKnownEndpoints holds the well known OIDC endpoints
type WellKnownEndpoints struct {
	Issuer                string `json:"issuer"`
	JWKSURI               string `json:"jwks_uri"`
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string `json:"token_endpoint,omitempty"`
}

// GetWellKnownEndpointsFromIssuerURL gets the well known endpoints for the
// passed in issuer url. When expectedIssuer is not empty the issuer named in
// the document must match it exactly.
func GetWellKnownEndpointsFromIssuerURL(
	ctx context.Context,
	client *http.Client,
	issuerURL url.URL,
	expectedIssuer string,
) (*WellKnownEndpoints, error) {
	issuerURL.Path = path.Join(issuerURL.Path, ".well-known/openid-configuration")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get well-known endpoints: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch well-known endpoints from %s: %w", issuerURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("well-known endpoint %s returned status %d, expected 200", issuerURL.String(), resp.StatusCode)
	}

	var wkEndpoints WellKnownEndpoints
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&wkEndpoints); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from well-known endpoint: %w", err)
	}

	if wkEndpoints.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document is missing required 'jwks_uri' field")
	}
	if expectedIssuer != "" {
		if wkEndpoints.Issuer == "" {
			return nil, fmt.Errorf("discovery document is missing required 'issuer' field")
		}
		if wkEndpoints.Issuer != expectedIssuer {
			return nil, fmt.Errorf("issuer mismatch: expected %q, discovery document has %q", expectedIssuer, wkEndpoints.Issuer)
		}
	}

	return &wkEndpoints, nil
}
