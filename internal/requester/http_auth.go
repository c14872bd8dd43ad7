package requester

import (
	"fmt"
	"net/http"

	"github.com/brizzai/blogctl/internal/credentials"
)

const (
	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"
	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "
)

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// HTTPAuthManager attaches the stored access token as a bearer credential
type HTTPAuthManager struct {
	store credentials.Store
}

// NewHTTPAuthManager creates a new HTTPAuthManager
func NewHTTPAuthManager(store credentials.Store) *HTTPAuthManager {
	return &HTTPAuthManager{store: store}
}

// ApplyAuth sets the bearer header when an access token is stored.
// Without a token the request simply goes out unauthenticated.
func (a *HTTPAuthManager) ApplyAuth(req *http.Request) error {
	token, err := a.store.Get(req.Context(), credentials.AccessTokenKey)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		req.Header.Del(AuthHeaderName)
		return nil
	}
	req.Header.Set(AuthHeaderName, AuthHeaderPrefix+token)
	return nil
}
