package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brizzai/blogctl/internal/backendtest"
	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/credentials"
	"github.com/brizzai/blogctl/internal/requester"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "secret123"

func newManager(t *testing.T, baseURL string, mods ...func(*config.Config)) (*Manager, credentials.Store) {
	t.Helper()
	cfg := &config.Config{API: config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second}}
	for _, mod := range mods {
		mod(cfg)
	}

	store := credentials.NewMemoryStore()
	req := requester.NewHTTPRequester(requester.HTTPRequesterParams{
		Config:      cfg,
		AuthManager: requester.NewHTTPAuthManager(store),
	})
	return NewManager(ManagerParams{Config: cfg, Store: store, Requester: req}), store
}

func newBackend(t *testing.T) (*backendtest.Server, backendtest.User) {
	t.Helper()
	backend := backendtest.New(t)
	user := backend.CreateUser(backendtest.User{
		ID:        7,
		Username:  "jodo",
		Email:     "a@b.com",
		FirstName: "Jo",
		LastName:  "Do",
	}, testPassword)
	return backend, user
}

func loadPair(t *testing.T, store credentials.Store) credentials.Pair {
	t.Helper()
	pair, err := credentials.LoadPair(context.Background(), store)
	require.NoError(t, err)
	return pair
}

func TestManager_IsTokenExpired(t *testing.T) {
	backend, user := newBackend(t)
	m, _ := newManager(t, backend.URL)

	assert.True(t, m.IsTokenExpired(backend.IssueToken(user.ID, backendtest.AccessToken, -time.Minute)))
	assert.False(t, m.IsTokenExpired(backend.IssueToken(user.ID, backendtest.AccessToken, time.Minute)))
	assert.True(t, m.IsTokenExpired("not.a.token"))
	assert.True(t, m.IsTokenExpired(""))

	// The manager clock decides, not the wall clock
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.True(t, m.IsTokenExpired(backend.IssueToken(user.ID, backendtest.AccessToken, time.Minute)))
}

func TestManager_LoginScenario(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"email": "a@b.com", "password": "secret123"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access":"A1","refresh":"R1","user":{"id":7,"first_name":"Jo","last_name":"Do","email":"a@b.com"}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	m, store := newManager(t, server.URL)
	user, err := m.Login(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)

	want := &User{ID: "7", Name: "Jo Do", Email: "a@b.com", FirstName: "Jo", LastName: "Do"}
	if diff := cmp.Diff(want, user); diff != "" {
		t.Errorf("normalized user mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(user)
	require.NoError(t, err)
	var shape map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.Equal(t, float64(7), shape["id"])
	assert.Equal(t, float64(7), shape["$id"])
	assert.Equal(t, "Jo Do", shape["name"])
	assert.Equal(t, "a@b.com", shape["email"])

	assert.Equal(t, credentials.Pair{Access: "A1", Refresh: "R1"}, loadPair(t, store))
}

func TestManager_Login(t *testing.T) {
	backend, user := newBackend(t)

	t.Run("Success", func(t *testing.T) {
		m, store := newManager(t, backend.URL)
		got, err := m.Login(context.Background(), user.Email, testPassword)
		require.NoError(t, err)
		assert.Equal(t, ID("7"), got.ID)
		assert.Equal(t, "jodo", got.Username)

		pair := loadPair(t, store)
		assert.NotEmpty(t, pair.Access)
		assert.NotEmpty(t, pair.Refresh)
		assert.True(t, m.IsAuthenticated(context.Background()))
	})

	t.Run("Invalid Credentials", func(t *testing.T) {
		m, store := newManager(t, backend.URL)
		_, err := m.Login(context.Background(), user.Email, "wrong-password")

		apiErr, ok := requester.AsAPIError(err)
		require.True(t, ok)
		assert.True(t, apiErr.IsValidation())
		assert.Equal(t, "non_field_errors: Invalid credentials", apiErr.Message)
		assert.Equal(t, credentials.Pair{}, loadPair(t, store))
		assert.False(t, m.IsAuthenticated(context.Background()))
	})
}

func TestManager_Register(t *testing.T) {
	backend := backendtest.New(t)
	reg := Registration{
		Username:        "newbie",
		Email:           "new@b.com",
		Password:        "longenough",
		PasswordConfirm: "longenough",
		FirstName:       "New",
		LastName:        "Bie",
	}

	t.Run("Success Logs In", func(t *testing.T) {
		m, store := newManager(t, backend.URL)
		user, err := m.Register(context.Background(), reg)
		require.NoError(t, err)

		assert.Equal(t, "New Bie", user.Name)
		assert.Equal(t, 1, backend.Calls(backendtest.RouteRegister))
		assert.Equal(t, 1, backend.Calls(backendtest.RouteLogin))
		assert.True(t, m.IsAuthenticated(context.Background()))
		assert.NotEmpty(t, loadPair(t, store).Refresh)
	})

	t.Run("Validation Error Is Returned Verbatim", func(t *testing.T) {
		m, store := newManager(t, backend.URL)
		bad := reg
		bad.Username = "someone-else"
		bad.PasswordConfirm = "different1"
		_, err := m.Register(context.Background(), bad)

		apiErr, ok := requester.AsAPIError(err)
		require.True(t, ok)
		assert.True(t, apiErr.IsValidation())
		assert.Equal(t, map[string][]string{"non_field_errors": {"Passwords don't match"}}, apiErr.FieldErrors())
		assert.Equal(t, credentials.Pair{}, loadPair(t, store))
	})
}

func TestManager_Logout(t *testing.T) {
	tests := []struct {
		name            string
		failBackend     bool
		withRefresh     bool
		wantLogoutCalls int
	}{
		{name: "Backend Succeeds", withRefresh: true, wantLogoutCalls: 1},
		{name: "Backend Fails", failBackend: true, withRefresh: true, wantLogoutCalls: 1},
		{name: "No Refresh Token Skips Backend", withRefresh: false, wantLogoutCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, user := newBackend(t)
			backend.FailLogout(tt.failBackend)
			m, store := newManager(t, backend.URL)
			ctx := context.Background()

			access, refresh := backend.IssuePair(user.ID)
			require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, access))
			if tt.withRefresh {
				require.NoError(t, store.Set(ctx, credentials.RefreshTokenKey, refresh))
			}

			m.Logout(ctx)

			assert.Equal(t, credentials.Pair{}, loadPair(t, store))
			assert.Equal(t, tt.wantLogoutCalls, backend.Calls(backendtest.RouteLogout))
			assert.False(t, m.IsAuthenticated(ctx))
			if tt.withRefresh && !tt.failBackend {
				assert.True(t, backend.IsBlacklisted(refresh))
			}
		})
	}
}

func TestManager_EnsureValidToken(t *testing.T) {
	tests := []struct {
		name             string
		access           func(b *backendtest.Server, userID int) string
		refresh          func(b *backendtest.Server, userID int) string
		want             bool
		wantRefreshCalls int
		wantCleared      bool
	}{
		{
			name:   "Valid Access Token",
			access: func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.AccessToken, time.Minute) },
			want:   true,
		},
		{
			name:             "Expired Access With Valid Refresh",
			access:           func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.AccessToken, -time.Minute) },
			refresh:          func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.RefreshToken, time.Hour) },
			want:             true,
			wantRefreshCalls: 1,
		},
		{
			name:        "Expired Access With Expired Refresh",
			access:      func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.AccessToken, -time.Minute) },
			refresh:     func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.RefreshToken, -time.Minute) },
			want:        false,
			wantCleared: true,
		},
		{
			name:        "Expired Access Without Refresh",
			access:      func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.AccessToken, -time.Minute) },
			want:        false,
			wantCleared: true,
		},
		{
			name:             "Refresh Rejected By Backend",
			access:           func(b *backendtest.Server, id int) string { return "garbage" },
			refresh:          func(b *backendtest.Server, id int) string { return b.IssueToken(id, backendtest.AccessToken, time.Hour) },
			want:             false,
			wantRefreshCalls: 1,
			wantCleared:      true,
		},
		{
			name: "No Access Token",
			refresh: func(b *backendtest.Server, id int) string {
				return b.IssueToken(id, backendtest.RefreshToken, time.Hour)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, user := newBackend(t)
			m, store := newManager(t, backend.URL)
			ctx := context.Background()

			if tt.access != nil {
				require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, tt.access(backend, user.ID)))
			}
			if tt.refresh != nil {
				require.NoError(t, store.Set(ctx, credentials.RefreshTokenKey, tt.refresh(backend, user.ID)))
			}
			before := loadPair(t, store)

			assert.Equal(t, tt.want, m.EnsureValidToken(ctx))
			assert.Equal(t, tt.wantRefreshCalls, backend.Calls(backendtest.RouteRefresh))

			after := loadPair(t, store)
			switch {
			case tt.wantCleared:
				assert.Equal(t, credentials.Pair{}, after)
			case tt.wantRefreshCalls > 0:
				assert.NotEqual(t, before.Access, after.Access)
				assert.False(t, m.IsTokenExpired(after.Access))
				assert.Equal(t, before.Refresh, after.Refresh, "refresh only overwrites the access slot")
			default:
				assert.Equal(t, before, after)
			}
		})
	}
}

func TestManager_CurrentUser(t *testing.T) {
	t.Run("Anonymous", func(t *testing.T) {
		backend, _ := newBackend(t)
		m, _ := newManager(t, backend.URL)

		assert.Nil(t, m.CurrentUser(context.Background()))
		assert.Zero(t, backend.Calls(backendtest.RouteCurrentUser))
	})

	t.Run("Authenticated", func(t *testing.T) {
		backend, user := newBackend(t)
		m, _ := newManager(t, backend.URL)
		_, err := m.Login(context.Background(), user.Email, testPassword)
		require.NoError(t, err)

		got := m.CurrentUser(context.Background())
		require.NotNil(t, got)
		assert.Equal(t, "Jo Do", got.Name)
		assert.Equal(t, "7", got.ID.String())
		assert.NotEmpty(t, got.DateJoined)
	})

	t.Run("Stale Session Refreshes First", func(t *testing.T) {
		backend, user := newBackend(t)
		m, store := newManager(t, backend.URL)
		ctx := context.Background()
		require.NoError(t, credentials.SavePair(ctx, store, credentials.Pair{
			Access:  backend.IssueToken(user.ID, backendtest.AccessToken, -time.Minute),
			Refresh: backend.IssueToken(user.ID, backendtest.RefreshToken, time.Hour),
		}))

		got := m.CurrentUser(ctx)
		require.NotNil(t, got)
		assert.Equal(t, 1, backend.Calls(backendtest.RouteRefresh))
		assert.Equal(t, 1, backend.Calls(backendtest.RouteCurrentUser))
	})

	t.Run("Unrecoverable Session", func(t *testing.T) {
		backend, user := newBackend(t)
		m, store := newManager(t, backend.URL)
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, backend.IssueToken(user.ID, backendtest.AccessToken, -time.Minute)))

		assert.Nil(t, m.CurrentUser(ctx))
		assert.Zero(t, backend.Calls(backendtest.RouteCurrentUser))
		assert.Equal(t, credentials.Pair{}, loadPair(t, store))
	})
}

func TestManager_RetriesUnauthorizedOnce(t *testing.T) {
	tests := []struct {
		name          string
		rejections    int
		wantUser      bool
		wantUserCalls int
	}{
		{name: "Single 401 Recovers", rejections: 1, wantUser: true, wantUserCalls: 2},
		{name: "Second 401 Propagates", rejections: 2, wantUser: false, wantUserCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, user := newBackend(t)
			m, _ := newManager(t, backend.URL)
			ctx := context.Background()
			_, err := m.Login(ctx, user.Email, testPassword)
			require.NoError(t, err)

			backend.RejectNext(tt.rejections)
			got := m.CurrentUser(ctx)

			assert.Equal(t, tt.wantUser, got != nil)
			assert.Equal(t, 1, backend.Calls(backendtest.RouteRefresh))
			assert.Equal(t, tt.wantUserCalls, backend.Calls(backendtest.RouteCurrentUser))
		})
	}
}

func TestManager_Refresh(t *testing.T) {
	t.Run("No Refresh Token", func(t *testing.T) {
		backend, _ := newBackend(t)
		m, _ := newManager(t, backend.URL)

		assert.ErrorIs(t, m.Refresh(context.Background()), ErrNoRefreshToken)
		assert.Zero(t, backend.Calls(backendtest.RouteRefresh))
	})

	t.Run("Expired Refresh Token", func(t *testing.T) {
		backend, user := newBackend(t)
		m, store := newManager(t, backend.URL)
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, credentials.RefreshTokenKey, backend.IssueToken(user.ID, backendtest.RefreshToken, -time.Second)))

		err := m.Refresh(ctx)
		assert.ErrorIs(t, err, ErrRefreshTokenExpired)
		assert.True(t, IsAuthError(err))
		assert.Equal(t, credentials.Pair{}, loadPair(t, store))
	})

	t.Run("Blacklisted Refresh Token", func(t *testing.T) {
		backend, user := newBackend(t)
		m, store := newManager(t, backend.URL)
		ctx := context.Background()
		_, err := m.Login(ctx, user.Email, testPassword)
		require.NoError(t, err)
		pair := loadPair(t, store)

		m.Logout(ctx)
		require.NoError(t, credentials.SavePair(ctx, store, pair))

		err = m.Refresh(ctx)
		assert.True(t, requester.IsStatus(err, http.StatusUnauthorized))
		assert.Equal(t, credentials.Pair{}, loadPair(t, store))
	})
}

func TestManager_RefreshDedupe(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"access":"new-access"}`))
	}))
	t.Cleanup(server.Close)

	backend, user := newBackend(t)
	m, store := newManager(t, server.URL, func(cfg *config.Config) {
		cfg.Session.DedupeRefresh = true
	})
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credentials.RefreshTokenKey, backend.IssueToken(user.ID, backendtest.RefreshToken, time.Hour)))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Refresh(ctx)
		}(i)
	}

	// Give every caller time to join the in-flight refresh
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, calls.Load())
	access, err := m.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
}

func TestManager_UserFromToken(t *testing.T) {
	backend, user := newBackend(t)
	m, store := newManager(t, backend.URL)
	ctx := context.Background()

	assert.Nil(t, m.UserFromToken(ctx))

	require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, backend.IssueToken(user.ID, backendtest.AccessToken, time.Minute)))
	got := m.UserFromToken(ctx)
	require.NotNil(t, got)
	assert.Equal(t, ID("7"), got.ID)
	assert.Zero(t, backend.Calls(backendtest.RouteCurrentUser))

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"$id":7}`, string(data))

	require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, backend.IssueToken(user.ID, backendtest.AccessToken, -time.Minute)))
	assert.Nil(t, m.UserFromToken(ctx))
}

func TestManager_State(t *testing.T) {
	backend, user := newBackend(t)
	m, store := newManager(t, backend.URL)
	ctx := context.Background()

	state, err := m.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, state)

	require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, backend.IssueToken(user.ID, backendtest.AccessToken, -time.Minute)))
	state, err = m.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateStale, state)

	require.NoError(t, store.Set(ctx, credentials.AccessTokenKey, backend.IssueToken(user.ID, backendtest.AccessToken, time.Minute)))
	state, err = m.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
}
