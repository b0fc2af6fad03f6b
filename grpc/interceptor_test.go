package grpc_test

import (
	"context"
	"errors"
	"testing"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/roamly/authkit/grpc"
)

// verifier accepts exactly one token and maps it to one user id.
func verifier(validToken, userID string) grpc.VerifyTokenFunc {
	return func(token string) (string, error) {
		if token == validToken {
			return userID, nil
		}
		return "", errors.New("invalid token")
	}
}

func incomingContext(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func TestUserIDFromContext(t *testing.T) {
	verify := verifier("good-token", "user-42")

	tests := []struct {
		name   string
		ctx    context.Context
		config *grpc.Config
		want   string
	}{
		{
			name:   "no metadata",
			ctx:    context.Background(),
			config: &grpc.Config{VerifyToken: verify},
			want:   "",
		},
		{
			name:   "bearer token",
			ctx:    incomingContext("authorization", "Bearer good-token"),
			config: &grpc.Config{VerifyToken: verify},
			want:   "user-42",
		},
		{
			name:   "bare token",
			ctx:    incomingContext("authorization", "good-token"),
			config: &grpc.Config{VerifyToken: verify},
			want:   "user-42",
		},
		{
			name:   "invalid token",
			ctx:    incomingContext("authorization", "Bearer forged"),
			config: &grpc.Config{VerifyToken: verify},
			want:   "",
		},
		{
			name:   "user id metadata ignored by default",
			ctx:    incomingContext("x-user-id", "user-42"),
			config: &grpc.Config{VerifyToken: verify},
			want:   "",
		},
		{
			name:   "user id metadata honored when trusted",
			ctx:    incomingContext("x-user-id", "user-42"),
			config: &grpc.Config{TrustUserIDMetadata: true},
			want:   "user-42",
		},
		{
			name:   "nil config resolves nothing",
			ctx:    incomingContext("authorization", "Bearer good-token"),
			config: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grpc.UserIDFromContext(tt.ctx, tt.config); got != tt.want {
				t.Errorf("UserIDFromContext = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnaryAuthInterceptor(t *testing.T) {
	config := grpc.DefaultInterceptorConfig()
	config.VerifyToken = verifier("good-token", "user-42")
	interceptor := grpc.UnaryAuthInterceptor(config)

	info := &gogrpc.UnaryServerInfo{FullMethod: "/authkit.Account/GetProfile"}
	handler := func(ctx context.Context, req any) (any, error) {
		return grpc.UserIDFromRequestContext(ctx), nil
	}

	t.Run("authenticated", func(t *testing.T) {
		got, err := interceptor(incomingContext("authorization", "Bearer good-token"), nil, info, handler)
		if err != nil {
			t.Fatalf("interceptor: %v", err)
		}
		if got != "user-42" {
			t.Errorf("handler saw user %q, want user-42", got)
		}
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, info, handler)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("err = %v, want Unauthenticated", err)
		}
	})

	t.Run("public method passes anonymously", func(t *testing.T) {
		cfg := grpc.NewPublicMethodsConfig("/authkit.Account/Health")
		cfg.VerifyToken = verifier("good-token", "user-42")
		ic := grpc.UnaryAuthInterceptor(cfg)

		got, err := ic(context.Background(), nil,
			&gogrpc.UnaryServerInfo{FullMethod: "/authkit.Account/Health"}, handler)
		if err != nil {
			t.Fatalf("interceptor: %v", err)
		}
		if got != "" {
			t.Errorf("anonymous public call resolved user %q", got)
		}
	})
}

type fakeServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	config := grpc.DefaultInterceptorConfig()
	config.VerifyToken = verifier("good-token", "user-42")
	interceptor := grpc.StreamAuthInterceptor(config)

	info := &gogrpc.StreamServerInfo{FullMethod: "/authkit.Account/WatchSessions"}

	t.Run("authenticated", func(t *testing.T) {
		stream := &fakeServerStream{ctx: incomingContext("authorization", "Bearer good-token")}
		var seen string
		err := interceptor(nil, stream, info, func(srv any, ss gogrpc.ServerStream) error {
			seen = grpc.UserIDFromRequestContext(ss.Context())
			return nil
		})
		if err != nil {
			t.Fatalf("interceptor: %v", err)
		}
		if seen != "user-42" {
			t.Errorf("handler saw user %q, want user-42", seen)
		}
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		stream := &fakeServerStream{ctx: context.Background()}
		err := interceptor(nil, stream, info, func(srv any, ss gogrpc.ServerStream) error {
			t.Fatal("handler must not run")
			return nil
		})
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("err = %v, want Unauthenticated", err)
		}
	})
}

func TestOutgoingContextHelpers(t *testing.T) {
	ctx := grpc.UserIDToOutgoingContext(context.Background(), "user-42")
	ctx = grpc.TokenToOutgoingContext(ctx, "session-token")

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("no outgoing metadata")
	}
	if got := md.Get("x-user-id"); len(got) != 1 || got[0] != "user-42" {
		t.Errorf("x-user-id = %v", got)
	}
	if got := md.Get("authorization"); len(got) != 1 || got[0] != "Bearer session-token" {
		t.Errorf("authorization = %v", got)
	}
}
