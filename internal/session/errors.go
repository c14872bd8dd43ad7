package session

import "errors"

var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrRefreshTokenExpired is returned by Refresh when the stored refresh token has expired
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrIncompleteTokenResponse means the backend answered without a token or user
	ErrIncompleteTokenResponse = errors.New("incomplete token response")
)
