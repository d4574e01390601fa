package handler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

const tracerName = "github.com/identitymodel/go-jsonwebtoken/handler"

func defaultTracer() oteltrace.Tracer {
	return otel.Tracer(tracerName)
}

func (h *TokenHandler) startSpan(ctx context.Context, name string, token string) (context.Context, oteltrace.Span) {
	return h.tracer.Start(ctx, name, oteltrace.WithAttributes(
		attribute.Int("jwt.length", len(token)),
		attribute.Int("jwt.segments", jwt.SegmentCount(token)),
	))
}

func (h *TokenHandler) endSpan(span oteltrace.Span, result *ValidationResult) {
	defer span.End()

	span.SetAttributes(attribute.Bool("jwt.valid", result.IsValid))
	if result.TokenType != "" {
		span.SetAttributes(attribute.String("jwt.type", result.TokenType))
	}
	if result.Issuer != "" {
		span.SetAttributes(attribute.String("jwt.issuer", result.Issuer))
	}
	if result.Err != nil {
		if code := tokenerr.CodeOf(result.Err); code != "" {
			span.SetAttributes(attribute.String("jwt.error_code", code))
		}
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "token validation failed")
		return
	}
	span.SetStatus(codes.Ok, "")
}
