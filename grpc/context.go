// Package grpc propagates the authenticated identity to gRPC services
// sitting behind the web frontend, either as a session JWT in the
// authorization metadata or as a trusted user-id key set by the gateway.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys for authentication context.
const (
	// DefaultMetadataKeyUserID is the metadata key a trusted gateway uses
	// to forward an already-verified user id
	DefaultMetadataKeyUserID = "x-user-id"

	// DefaultMetadataKeyAuthorization carries a bearer session JWT
	DefaultMetadataKeyAuthorization = "authorization"
)

// VerifyTokenFunc validates a session JWT and returns the user id it was
// issued for. Wire authkit's Auth.VerifyAuthToken here.
type VerifyTokenFunc func(tokenString string) (userID string, err error)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyUserID is the metadata key for a pre-verified user id.
	// Only honored when TrustUserIDMetadata is set; defaults to "x-user-id".
	MetadataKeyUserID string

	// MetadataKeyAuthorization is the metadata key checked for a bearer
	// token. Defaults to "authorization".
	MetadataKeyAuthorization string

	// TrustUserIDMetadata accepts MetadataKeyUserID without a token.
	// Enable only when the service is reachable solely through a gateway
	// that strips inbound copies of the key.
	TrustUserIDMetadata bool

	// VerifyToken validates bearer tokens. Without it only trusted
	// metadata can authenticate a request.
	VerifyToken VerifyTokenFunc
}

// DefaultConfig returns a config that only accepts verified bearer tokens.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

// UserIDFromContext resolves the authenticated user id from incoming
// metadata. Returns "" for anonymous requests.
func UserIDFromContext(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if config.TrustUserIDMetadata {
		if values := md.Get(config.MetadataKeyUserID); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}

	if config.VerifyToken != nil {
		for _, value := range md.Get(config.MetadataKeyAuthorization) {
			token := stripBearer(value)
			if token == "" {
				continue
			}
			if userID, err := config.VerifyToken(token); err == nil && userID != "" {
				return userID
			}
		}
	}

	return ""
}

// UserIDToOutgoingContext adds a pre-verified user id to outgoing metadata,
// for gateway-to-service calls.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// TokenToOutgoingContext adds a bearer session token to outgoing metadata.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

func stripBearer(value string) string {
	const prefix = "Bearer "
	if len(value) > len(prefix) && value[:len(prefix)] == prefix {
		return value[len(prefix):]
	}
	return value
}
