package shared

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims holds the access token fields the client cares about.
type TokenClaims struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

type accessClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken reads the claims of a backend-issued access token.
//
// The signature is not verified: the backend is the only party that can do
// that, the client only needs the subject and expiry to schedule refreshes.
func ParseAccessToken(raw string) (*TokenClaims, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: malformed access token: %v", ErrAuthFailed, err)
	}

	out := &TokenClaims{Username: claims.Username}
	if claims.Subject != "" {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric subject %q", ErrAuthFailed, claims.Subject)
		}
		out.UserID = id
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
