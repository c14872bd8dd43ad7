// Package credentials holds the access/refresh token pair between calls and
// decodes the claims embedded in those tokens.
package credentials

import (
	"context"
	"fmt"
)

// Key names one of the two credential slots
type Key string

const (
	AccessTokenKey  Key = "access_token"
	RefreshTokenKey Key = "refresh_token"
)

// Keys lists every slot a store manages
var Keys = []Key{AccessTokenKey, RefreshTokenKey}

// Store is a process-wide key-value slot for credentials.
// Get returns an empty string and no error when the key is absent.
type Store interface {
	Get(ctx context.Context, key Key) (string, error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, keys ...Key) error
}

// Pair is the access/refresh token pair issued by the backend
type Pair struct {
	Access  string `json:"access" yaml:"access_token"`
	Refresh string `json:"refresh" yaml:"refresh_token"`
}

// SavePair writes both tokens
func SavePair(ctx context.Context, s Store, pair Pair) error {
	if err := s.Set(ctx, AccessTokenKey, pair.Access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.Set(ctx, RefreshTokenKey, pair.Refresh); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// LoadPair reads both tokens, missing ones come back empty
func LoadPair(ctx context.Context, s Store) (Pair, error) {
	access, err := s.Get(ctx, AccessTokenKey)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := s.Get(ctx, RefreshTokenKey)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Clear removes both tokens
func Clear(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, Keys...); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
