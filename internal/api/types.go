package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AccessToken is the record returned by the authentication endpoints.
//
// The record is carried and persisted as the exact bytes the server sent;
// only the token string itself is extracted. Expiry is the server's
// business and is never parsed locally.
type AccessToken struct {
	// Token is the bearer credential attached to outbound requests.
	Token string

	raw json.RawMessage
}

// Compile-time checks that AccessToken round-trips through JSON unchanged.
var (
	_ json.Marshaler   = (*AccessToken)(nil)
	_ json.Unmarshaler = (*AccessToken)(nil)
)

// UnmarshalJSON keeps the raw record and extracts the token string.
func (t *AccessToken) UnmarshalJSON(data []byte) error {
	var envelope struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decoding access token record: %w", err)
	}
	if envelope.AccessToken == "" {
		return fmt.Errorf("access token record has no accessToken field")
	}

	t.Token = envelope.AccessToken
	t.raw = append(t.raw[:0], data...)
	return nil
}

// MarshalJSON returns the record exactly as received from the server.
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return json.Marshal(map[string]string{"accessToken": t.Token})
}

// Equal reports whether two records carry the same payload.
func (t *AccessToken) Equal(other *AccessToken) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.raw) > 0 || len(other.raw) > 0 {
		return bytes.Equal(t.raw, other.raw)
	}
	return t.Token == other.Token
}

// UserProfile is the identity record served by GET /api/users/me.
type UserProfile struct {
	ID        int    `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
}

// LoginRequest carries credentials for POST /api/authenticate/login.
// Exactly one of Email or Username is set; the server resolves either.
type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"omitempty,min=3,max=255,email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest carries the fields for POST /api/authenticate/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required,min=3,max=255,email"`
	Password string `json:"password" validate:"required,min=8"`
}
