package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	*Config

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but UserIDFromRequestContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Keys are full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig() *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig()
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

type requestUserKey struct{}

// UserIDFromRequestContext returns the user id the interceptor resolved for
// this request, or "" when anonymous.
func UserIDFromRequestContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestUserKey{}).(string); ok {
		return v
	}
	return ""
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// caller's identity from metadata and enforces it where required.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = ensureInterceptorConfig(config)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		userID := UserIDFromContext(ctx, config.Config)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if userID == "" {
				return nil, status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		return handler(context.WithValue(ctx, requestUserKey{}, userID), req)
	}
}

// StreamAuthInterceptor returns the stream counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = ensureInterceptorConfig(config)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		userID := UserIDFromContext(ss.Context(), config.Config)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			if userID == "" {
				return status.Error(codes.Unauthenticated, "authentication required")
			}
		}

		return handler(srv, &wrappedStream{ServerStream: ss, userID: userID})
	}
}

func ensureInterceptorConfig(config *InterceptorConfig) *InterceptorConfig {
	if config == nil {
		config = DefaultInterceptorConfig()
	}
	if config.Config == nil {
		config.Config = DefaultConfig()
	}
	config.Config.EnsureDefaults()
	return config
}

// wrappedStream overrides Context so handlers see the resolved user id.
type wrappedStream struct {
	grpc.ServerStream
	userID string
}

func (w *wrappedStream) Context() context.Context {
	return context.WithValue(w.ServerStream.Context(), requestUserKey{}, w.userID)
}
