package jwtgrpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
)

// TokenExtractor reads a token from the call context. An empty string
// means no token was sent.
type TokenExtractor func(ctx context.Context) (string, error)

// MetadataTokenExtractor reads a bearer token from the "authorization"
// metadata field.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	value := firstValue(ctx, "authorization")
	if value == "" {
		return "", nil
	}
	return jsonwebtoken.BearerToken(value)
}

// MetadataFieldTokenExtractor reads the raw token from field.
func MetadataFieldTokenExtractor(field string) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		return firstValue(ctx, field), nil
	}
}

// MultiTokenExtractor returns the first token found by extractors.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		for _, ex := range extractors {
			token, err := ex(ctx)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}

func firstValue(ctx context.Context, field string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(field)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
