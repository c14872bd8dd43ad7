package requester_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/requester"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAuthManager implements the AuthManager interface for testing
type MockAuthManager struct {
	token string
}

func (m *MockAuthManager) ApplyAuth(req *http.Request) error {
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	return nil
}

func newTestRequester(t *testing.T, handler http.HandlerFunc, apiCfg config.APIConfig, auth requester.AuthManager) *requester.HTTPRequester {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	apiCfg.BaseURL = server.URL
	if auth == nil {
		auth = &MockAuthManager{}
	}
	return requester.NewHTTPRequester(requester.HTTPRequesterParams{
		Config:      &config.Config{API: apiCfg},
		AuthManager: auth,
	})
}

func TestHTTPRequester(t *testing.T) {
	tests := []struct {
		name           string
		routeConfig    *requester.RouteConfig
		apiConfig      config.APIConfig
		auth           requester.AuthManager
		params         requester.Params
		timeout        time.Duration
		serverResponse func(w http.ResponseWriter, r *http.Request)
		checkResponse  func(t *testing.T, response *requester.Response, err error)
	}{
		{
			name: "Simple GET Request",
			routeConfig: &requester.RouteConfig{
				Name:   "list",
				Path:   "/test",
				Method: "GET",
			},
			timeout: 30 * time.Second,
			params: requester.Params{
				"param1": "value1",
				"param2": "value2",
			},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "GET", r.Method)
				assert.Equal(t, "/test", r.URL.Path)
				assert.Equal(t, "value1", r.URL.Query().Get("param1"))
				assert.Equal(t, "value2", r.URL.Query().Get("param2"))
				assert.NotEmpty(t, r.Header.Get(requester.RequestIDHeader))
				w.WriteHeader(http.StatusOK)
				if err := json.NewEncoder(w).Encode(map[string]string{"status": "success"}); err != nil {
					t.Errorf("Failed to encode response: %v", err)
				}
			},
			checkResponse: func(t *testing.T, response *requester.Response, err error) {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, response.StatusCode)

				var body map[string]string
				require.NoError(t, response.Decode(&body))
				assert.Equal(t, "success", body["status"])
			},
		},
		{
			name: "POST Request with Body",
			routeConfig: &requester.RouteConfig{
				Name:   "create",
				Path:   "/test",
				Method: "POST",
			},
			timeout: 30 * time.Second,
			params: requester.Params{
				"body": map[string]interface{}{
					"key1": "value1",
					"key2": "value2",
				},
			},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/test", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]interface{}
				err := json.NewDecoder(r.Body).Decode(&body)
				require.NoError(t, err)
				assert.Equal(t, "value1", body["key1"])
				assert.Equal(t, "value2", body["key2"])

				w.WriteHeader(http.StatusCreated)
				if err := json.NewEncoder(w).Encode(map[string]string{"status": "created"}); err != nil {
					t.Errorf("Failed to encode response: %v", err)
				}
			},
			checkResponse: func(t *testing.T, response *requester.Response, err error) {
				require.NoError(t, err)
				assert.Equal(t, http.StatusCreated, response.StatusCode)
			},
		},
		{
			name: "Request Timeout",
			routeConfig: &requester.RouteConfig{
				Name:   "slow",
				Path:   "/timeout",
				Method: "GET",
			},
			timeout: 100 * time.Millisecond,
			params:  requester.Params{},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			},
			checkResponse: func(t *testing.T, response *requester.Response, err error) {
				assert.Error(t, err)
				assert.Nil(t, response)
			},
		},
		{
			name: "Request with Headers",
			routeConfig: &requester.RouteConfig{
				Name:   "headers",
				Path:   "/headers",
				Method: "GET",
			},
			apiConfig: config.APIConfig{
				Headers: map[string]string{"X-Test-Header": "test-value"},
			},
			auth:    &MockAuthManager{token: "abc"},
			timeout: 30 * time.Second,
			params:  requester.Params{},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-value", r.Header.Get("X-Test-Header"))
				assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusNoContent)
			},
			checkResponse: func(t *testing.T, response *requester.Response, err error) {
				require.NoError(t, err)
				assert.Equal(t, http.StatusNoContent, response.StatusCode)
				assert.Empty(t, response.Body)
			},
		},
		{
			name: "Error Status Becomes APIError",
			routeConfig: &requester.RouteConfig{
				Name:   "missing",
				Path:   "/posts/get/{slug}/",
				Method: "GET",
			},
			timeout: 30 * time.Second,
			params:  requester.Params{"slug": "nope"},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"detail":"No Post matches the given query."}`))
			},
			checkResponse: func(t *testing.T, response *requester.Response, err error) {
				assert.Nil(t, response)
				apiErr, ok := requester.AsAPIError(err)
				require.True(t, ok)
				assert.True(t, apiErr.IsNotFound())
				assert.Equal(t, "No Post matches the given query.", apiErr.Message)
				assert.Contains(t, err.Error(), "404")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requester := newTestRequester(t, tt.serverResponse, tt.apiConfig, tt.auth)

			// Set timeout
			requester.SetTimeout(tt.timeout)

			// Build the route executor
			executor, err := requester.BuildRouteExecutor(tt.routeConfig)
			require.NoError(t, err)

			// Execute the request
			resp, err := executor(context.Background(), tt.params)

			// Check the response
			tt.checkResponse(t, resp, err)
		})
	}
}

func TestHTTPRequester_BuildRouteExecutorValidation(t *testing.T) {
	r := requester.NewHTTPRequester(requester.HTTPRequesterParams{
		Config:      &config.Config{API: config.APIConfig{BaseURL: "http://api.example.com"}},
		AuthManager: &MockAuthManager{},
	})

	_, err := r.BuildRouteExecutor(nil)
	assert.Error(t, err)

	_, err = r.BuildRouteExecutor(&requester.RouteConfig{Name: "broken", Method: "GET"})
	assert.Error(t, err)

	assert.Panics(t, func() {
		r.MustBuildRouteExecutor(&requester.RouteConfig{Name: "broken"})
	})
}
