package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the decoded payload of the stored access token. The
// backend issues JWTs, so the payload can be read locally for display
// purposes (e.g. showing when the session expires). The payload is NOT
// verified and is never consulted to decide whether a token is still
// valid: expiry is only ever discovered through a 401.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Claims decodes the stored access token without verifying it.
func (m *Manager) Claims() (*Claims, error) {
	token := m.AccessToken()
	if token == "" {
		return nil, errors.Wrap(ErrNoSession, "[Manager.Claims]")
	}

	var parsed accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &parsed); err != nil {
		return nil, errors.Wrap(err, "[Manager.Claims] parse access token")
	}

	claims := &Claims{
		Subject: parsed.Subject,
		Email:   parsed.Email,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}
