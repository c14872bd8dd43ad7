package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token cannot be decoded
var ErrMalformedToken = errors.New("malformed token")

// Claims is the claim set the backend embeds in access and refresh tokens.
// UserID is kept raw because the backend may use numeric or string keys.
type Claims struct {
	jwt.RegisteredClaims
	UserID    json.RawMessage `json:"user_id,omitempty"`
	TokenType string          `json:"token_type,omitempty"`
}

var claimParser = jwt.NewParser()

// ParseClaims decodes the claims of a token without verifying its signature.
// Verification is the backend's job, the client only reads.
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	claims := &Claims{}
	if _, _, err := claimParser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of a token
func ExpiresAt(token string) (time.Time, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether token's exp lies before now. Tokens that cannot
// be decoded or carry no exp count as expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return exp.Before(now)
}
