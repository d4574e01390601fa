package configuration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/internal/oidc"
)

// maxKeySetSize bounds the key set read from the network. Key sets are
// usually well under 10KB.
const maxKeySetSize = 1 << 20

// HTTPRetriever builds a Configuration from an issuer's discovery document
// and key set, or from a key set URI alone.
type HTTPRetriever struct {
	issuerURL *url.URL
	jwksURI   *url.URL
	issuer    string
	client    *http.Client
}

// NewOIDCRetriever returns a retriever that discovers the key set of the
// issuer at issuerURL.
func NewOIDCRetriever(issuerURL *url.URL, opts ...RetrieverOption) (*HTTPRetriever, error) {
	if issuerURL == nil {
		return nil, errors.New("issuer url is required but was nil")
	}
	return newHTTPRetriever(&HTTPRetriever{issuerURL: issuerURL, issuer: issuerURL.String()}, opts)
}

// NewJWKSRetriever returns a retriever that reads keys from jwksURI without
// discovery. The configuration's issuer is the expected issuer, if set.
func NewJWKSRetriever(jwksURI *url.URL, opts ...RetrieverOption) (*HTTPRetriever, error) {
	if jwksURI == nil {
		return nil, errors.New("jwks uri is required but was nil")
	}
	return newHTTPRetriever(&HTTPRetriever{jwksURI: jwksURI}, opts)
}

func newHTTPRetriever(r *HTTPRetriever, opts []RetrieverOption) (*HTTPRetriever, error) {
	r.client = cleanhttp.DefaultPooledClient()
	r.client.Timeout = 30 * time.Second
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return r, nil
}

// Retrieve fetches the discovery document when needed and then the key set.
// Keys marked for encryption become decryption keys; all others are signing
// keys.
func (r *HTTPRetriever) Retrieve(ctx context.Context) (*Configuration, error) {
	cfg := &Configuration{Issuer: r.issuer}

	jwksURI := r.jwksURI
	if jwksURI == nil {
		endpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, r.client, *r.issuerURL, r.issuer)
		if err != nil {
			return nil, err
		}
		if jwksURI, err = url.Parse(endpoints.JWKSURI); err != nil {
			return nil, fmt.Errorf("could not parse JWKS URI from well-known endpoints: %w", err)
		}
		cfg.Issuer = endpoints.Issuer
	}
	cfg.JWKSURI = jwksURI.String()

	set, maxAge, err := r.fetchKeySet(ctx, cfg.JWKSURI)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}
	cfg.MaxAge = maxAge

	for i := 0; i < set.Len(); i++ {
		key, _ := set.Key(i)
		if key.KeyUsage() == string(jwk.ForEncryption) {
			cfg.TokenDecryptionKeys = append(cfg.TokenDecryptionKeys, key)
			continue
		}
		cfg.SigningKeys = append(cfg.SigningKeys, key)
	}
	return cfg, nil
}

// fetchKeySet returns the key set and the max-age from its Cache-Control
// header, or 0 when there is none.
func (r *HTTPRetriever) fetchKeySet(ctx context.Context, jwksURI string) (jwk.Set, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("request returned status %d, expected 200", resp.StatusCode)
	}

	var maxAge time.Duration
	if cacheControl := resp.Header.Get("Cache-Control"); cacheControl != "" {
		maxAge = parseCacheControl(cacheControl)
	}

	set, err := jwk.ParseReader(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return set, maxAge, nil
}

// parseCacheControl extracts max-age from a Cache-Control header. Values
// outside one second to seven days are ignored.
func parseCacheControl(cacheControl string) time.Duration {
	const (
		maxAgePrefix = "max-age="
		minTTL       = time.Second
		maxTTL       = 7 * 24 * time.Hour
	)

	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, maxAgePrefix) {
			continue
		}
		seconds, err := strconv.ParseInt(strings.TrimPrefix(directive, maxAgePrefix), 10, 64)
		if err != nil || seconds <= 0 {
			continue
		}
		ttl := time.Duration(seconds) * time.Second
		if ttl < minTTL || ttl > maxTTL {
			return 0
		}
		return ttl
	}
	return 0
}
