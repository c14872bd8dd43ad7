package backendtest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the token_type claim of an issued token
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type tokenClaims struct {
	jwt.RegisteredClaims

	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
}

var errWrongTokenType = errors.New("token has wrong type")

var jwtParser = jwt.NewParser()

// IssueToken signs a token for userID that expires ttl from the server clock.
// A negative ttl yields an already expired token.
func (s *Server) IssueToken(userID int, tokenType TokenType, ttl time.Duration) string {
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
		UserID:    userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		// HS256 signing with a byte key cannot fail
		panic(fmt.Sprintf("backendtest: failed to sign token: %v", err))
	}
	return signed
}

// IssuePair returns a fresh access and refresh token for userID
func (s *Server) IssuePair(userID int) (access, refresh string) {
	return s.IssueToken(userID, AccessToken, s.AccessTTL), s.IssueToken(userID, RefreshToken, s.RefreshTTL)
}

func (s *Server) verify(token string, want TokenType) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.TokenType != want {
		return nil, errWrongTokenType
	}
	return claims, nil
}

func extractToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
