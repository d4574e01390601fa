// Package jwtgrpc validates tokens carried in gRPC metadata.
package jwtgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jsonwebtoken "github.com/identitymodel/go-jsonwebtoken"
	"github.com/identitymodel/go-jsonwebtoken/handler"
	"github.com/identitymodel/go-jsonwebtoken/logging"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// ErrorHandler converts a rejection into the status returned to the
// client. err is jsonwebtoken.ErrJWTMissing, an error that Is
// jsonwebtoken.ErrJWTInvalid, or an extraction error.
type ErrorHandler func(ctx context.Context, err error) error

// Interceptor authenticates unary and streaming calls.
type Interceptor struct {
	handler             *handler.TokenHandler
	params              *handler.ValidationParameters
	tokenExtractor      TokenExtractor
	credentialsOptional bool
	exclusionChecker    func(method string) bool
	errorHandler        ErrorHandler
	logger              logging.Logger
}

// New returns an Interceptor validating tokens with h against params.
func New(h *handler.TokenHandler, params *handler.ValidationParameters, opts ...Option) (*Interceptor, error) {
	if h == nil {
		return nil, jsonwebtoken.ErrHandlerNil
	}
	if params == nil {
		return nil, jsonwebtoken.ErrParametersNil
	}

	i := &Interceptor{
		handler:        h,
		params:         params,
		tokenExtractor: MetadataTokenExtractor,
		errorHandler:   DefaultErrorHandler,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return i, nil
}

// DefaultErrorHandler returns codes.Unauthenticated, naming the validation
// error code when there is one.
func DefaultErrorHandler(_ context.Context, err error) error {
	if code := tokenerr.CodeOf(err); code != "" {
		return status.Errorf(codes.Unauthenticated, "%s (%s)", jsonwebtoken.ErrJWTInvalid, code)
	}
	return status.Error(codes.Unauthenticated, err.Error())
}

// authenticate returns ctx carrying the validation result, or ctx itself
// when the call needs no token.
func (i *Interceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	if i.exclusionChecker != nil && i.exclusionChecker(method) {
		i.logger.Debugf("skipping token validation for excluded method %s", method)
		return ctx, nil
	}

	token, err := i.tokenExtractor(ctx)
	if err != nil {
		i.logger.Errorf("failed to extract token for %s: %v", method, err)
		return nil, i.errorHandler(ctx, fmt.Errorf("error extracting token: %w", err))
	}
	if token == "" {
		if i.credentialsOptional {
			return ctx, nil
		}
		return nil, i.errorHandler(ctx, jsonwebtoken.ErrJWTMissing)
	}

	result := i.handler.ValidateToken(ctx, token, i.params)
	if !result.IsValid {
		i.logger.Warnf("token validation failed for %s (%s): %v", method, tokenerr.CodeOf(result.Err), result.Err)
		return nil, i.errorHandler(ctx, fmt.Errorf("%w: %w", jsonwebtoken.ErrJWTInvalid, result.Err))
	}
	return jsonwebtoken.NewContext(ctx, result), nil
}

// UnaryServerInterceptor returns the interceptor for unary calls.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		authCtx, err := i.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return next(authCtx, req)
	}
}

// StreamServerInterceptor returns the interceptor for streaming calls.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		authCtx, err := i.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return next(srv, &wrappedServerStream{ServerStream: ss, ctx: authCtx})
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
