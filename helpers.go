package authkit

import (
	"encoding/base64"
	"fmt"
)

// EncodeUID encodes a user id for use in links. The encoding is URL-safe
// base64 without padding; clients treat the value as opaque.
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid uid encoding: %w", err)
	}
	return string(raw), nil
}

// ConfirmLink builds the absolute activation URL embedded in the
// registration email.
func ConfirmLink(baseURL string, user *User, token string) string {
	return fmt.Sprintf("%s/auth/confirm/%s/%s", baseURL, EncodeUID(user.ID), token)
}

// ResetLink builds the absolute password reset URL embedded in the
// reset email.
func ResetLink(baseURL string, user *User, token string) string {
	return fmt.Sprintf("%s/reset-password/%s/%s", baseURL, EncodeUID(user.ID), token)
}
