// Package session manages the authenticated session against the blog backend:
// login, registration, token refresh and logout on top of a credential store.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/credentials"
	"github.com/brizzai/blogctl/internal/logger"
	"github.com/brizzai/blogctl/internal/requester"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registration holds the fields accepted by the register endpoint
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

// Manager owns the session lifecycle. It implements requester.Refresher so
// the retrying requester it hands out can recover from an expired token.
type Manager struct {
	store  credentials.Store
	bare   *requester.HTTPRequester
	authed *requester.HTTPRequester
	now    func() time.Time
	// refreshes is nil unless concurrent refreshes are collapsed
	refreshes *singleflight.Group

	register    requester.RouteExecutor
	login       requester.RouteExecutor
	logout      requester.RouteExecutor
	refresh     requester.RouteExecutor
	currentUser requester.RouteExecutor
}

type ManagerParams struct {
	fx.In

	Config    *config.Config
	Store     credentials.Store
	Requester *requester.HTTPRequester
}

// NewManager creates a Manager and the retrying requester it exposes
func NewManager(params ManagerParams) *Manager {
	m := &Manager{
		store: params.Store,
		bare:  params.Requester,
		now:   time.Now,
	}
	if params.Config != nil && params.Config.Session.DedupeRefresh {
		m.refreshes = &singleflight.Group{}
	}
	m.authed = params.Requester.WithMiddleware(requester.RetryUnauthorized(m))

	m.register = m.bare.MustBuildRouteExecutor(registerRoute)
	m.login = m.bare.MustBuildRouteExecutor(loginRoute)
	m.logout = m.bare.MustBuildRouteExecutor(logoutRoute)
	m.refresh = m.bare.MustBuildRouteExecutor(refreshRoute)
	m.currentUser = m.authed.MustBuildRouteExecutor(currentUserRoute)
	return m
}

// Requester returns the requester privileged calls should use. A 401 from
// the backend triggers one refresh and one replay of the request.
func (m *Manager) Requester() *requester.HTTPRequester {
	return m.authed
}

// Store returns the credential store backing the session
func (m *Manager) Store() credentials.Store {
	return m.store
}

// Register creates an account, stores the returned tokens and then logs in
// with the same email and password.
func (m *Manager) Register(ctx context.Context, reg Registration) (*User, error) {
	resp, err := m.register(requester.WithoutRefresh(ctx), requester.Params{requester.ParamBody: reg})
	if err != nil {
		logger.Debug("registration failed", zap.String("email", reg.Email), zap.Error(err))
		return nil, err
	}

	var tokens tokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	if err := m.storeTokens(ctx, tokens); err != nil {
		return nil, err
	}

	return m.Login(ctx, reg.Email, reg.Password)
}

// Login exchanges credentials for a token pair and returns the user
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := m.login(requester.WithoutRefresh(ctx), requester.Params{
		requester.ParamBody: map[string]string{
			"email":    email,
			"password": password,
		},
	})
	if err != nil {
		logger.Debug("login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	var tokens tokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	if tokens.User == nil {
		return nil, fmt.Errorf("login: %w: missing user", ErrIncompleteTokenResponse)
	}
	if err := m.storeTokens(ctx, tokens); err != nil {
		return nil, err
	}

	logger.Info("logged in", zap.String("user_id", tokens.User.ID.String()), logger.Token("access_token", tokens.Access))
	return tokens.User, nil
}

func (m *Manager) storeTokens(ctx context.Context, tokens tokenResponse) error {
	if tokens.Access == "" || tokens.Refresh == "" {
		return fmt.Errorf("%w: missing access or refresh token", ErrIncompleteTokenResponse)
	}
	if err := credentials.SavePair(ctx, m.store, credentials.Pair{Access: tokens.Access, Refresh: tokens.Refresh}); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// CurrentUser fetches the profile of the logged in user. It returns nil
// when there is no session or the session cannot be recovered.
func (m *Manager) CurrentUser(ctx context.Context) *User {
	token, err := m.AccessToken(ctx)
	if err != nil {
		logger.Warn("failed to read access token", zap.Error(err))
		return nil
	}
	if token == "" {
		return nil
	}

	if m.IsTokenExpired(token) {
		if err := m.Refresh(ctx); err != nil {
			logger.Debug("no current user, refresh failed", zap.Error(err))
			return nil
		}
	}

	resp, err := m.currentUser(ctx, requester.Params{})
	if err != nil {
		logger.Warn("failed to fetch current user", zap.Error(err))
		return nil
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		logger.Warn("failed to decode current user", zap.Error(err))
		return nil
	}
	return &user
}

// Refresh exchanges the stored refresh token for a new access token. Every
// failure ends the session before the error is returned.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.refreshes == nil {
		return m.doRefresh(ctx)
	}

	_, err, shared := m.refreshes.Do("refresh", func() (interface{}, error) {
		return nil, m.doRefresh(ctx)
	})
	if shared {
		logger.Debug("joined in-flight token refresh")
	}
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	refresh, err := m.RefreshToken(ctx)
	if err != nil {
		m.Logout(ctx)
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refresh == "" {
		m.Logout(ctx)
		return ErrNoRefreshToken
	}
	if m.IsTokenExpired(refresh) {
		m.Logout(ctx)
		return ErrRefreshTokenExpired
	}

	resp, err := m.refresh(requester.WithoutRefresh(ctx), requester.Params{
		requester.ParamBody: map[string]string{"refresh": refresh},
	})
	if err != nil {
		m.Logout(ctx)
		return fmt.Errorf("refresh access token: %w", err)
	}

	var tokens tokenResponse
	if err := resp.Decode(&tokens); err != nil {
		m.Logout(ctx)
		return fmt.Errorf("refresh access token: %w", err)
	}
	if tokens.Access == "" {
		m.Logout(ctx)
		return fmt.Errorf("refresh access token: %w: missing access token", ErrIncompleteTokenResponse)
	}

	if err := m.store.Set(ctx, credentials.AccessTokenKey, tokens.Access); err != nil {
		m.Logout(ctx)
		return fmt.Errorf("failed to store access token: %w", err)
	}

	logger.Debug("access token refreshed", logger.Token("access_token", tokens.Access))
	return nil
}

// Logout notifies the backend when a refresh token is stored and always
// clears both tokens locally. Backend failures are logged and ignored.
func (m *Manager) Logout(ctx context.Context) {
	refresh, err := m.RefreshToken(ctx)
	if err != nil {
		logger.Warn("failed to read refresh token", zap.Error(err))
	}

	if refresh != "" {
		_, err := m.logout(requester.WithoutRefresh(ctx), requester.Params{
			requester.ParamBody: map[string]string{"refresh": refresh},
		})
		if err != nil {
			logger.Warn("backend logout failed", zap.Error(err))
		}
	}

	if err := credentials.Clear(ctx, m.store); err != nil {
		logger.Error("failed to clear stored tokens", zap.Error(err))
	}
}

// IsTokenExpired decodes the exp claim without verifying the signature.
// Malformed tokens and tokens without exp count as expired.
func (m *Manager) IsTokenExpired(token string) bool {
	return credentials.IsExpired(token, m.now())
}

// EnsureValidToken reports whether a privileged call may proceed, refreshing
// an expired access token once if needed.
func (m *Manager) EnsureValidToken(ctx context.Context) bool {
	token, err := m.AccessToken(ctx)
	if err != nil {
		logger.Warn("failed to read access token", zap.Error(err))
		return false
	}
	if token == "" {
		return false
	}
	if !m.IsTokenExpired(token) {
		return true
	}

	if err := m.Refresh(ctx); err != nil {
		logger.Debug("token refresh failed", zap.Error(err))
		return false
	}
	return true
}

// IsAuthenticated reports whether an unexpired access token is stored
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, err := m.AccessToken(ctx)
	if err != nil || token == "" {
		return false
	}
	return !m.IsTokenExpired(token)
}

// AccessToken returns the stored access token, or "" when there is none
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	return m.store.Get(ctx, credentials.AccessTokenKey)
}

// RefreshToken returns the stored refresh token, or "" when there is none
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	return m.store.Get(ctx, credentials.RefreshTokenKey)
}

// UserFromToken builds a minimal user from the access token's user_id
// claim without a network call.
func (m *Manager) UserFromToken(ctx context.Context) *User {
	token, err := m.AccessToken(ctx)
	if err != nil || token == "" || m.IsTokenExpired(token) {
		return nil
	}

	claims, err := credentials.ParseClaims(token)
	if err != nil {
		logger.Debug("failed to decode access token", zap.Error(err))
		return nil
	}

	var id ID
	if len(claims.UserID) == 0 || id.UnmarshalJSON(claims.UserID) != nil || id.IsZero() {
		return nil
	}
	return &User{ID: id}
}

// State describes the session without contacting the backend
type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateStale         State = "stale"
)

// State classifies the stored tokens
func (m *Manager) State(ctx context.Context) (State, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case token == "":
		return StateAnonymous, nil
	case m.IsTokenExpired(token):
		return StateStale, nil
	default:
		return StateAuthenticated, nil
	}
}

// IsAuthError reports whether err means the caller has to log in again
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrRefreshTokenExpired) ||
		requester.IsStatus(err, http.StatusUnauthorized)
}
