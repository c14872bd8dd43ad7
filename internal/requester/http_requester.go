package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// HTTPRequester handles both request building and execution
type HTTPRequester struct {
	client     *http.Client
	serviceCfg *config.APIConfig
	authMgr    AuthManager
	// outer middlewares wrap the built-in chain, first is outermost
	outer []Middleware
}

type HTTPRequesterParams struct {
	fx.In

	Config      *config.Config
	AuthManager AuthManager
}

// NewHTTPRequester creates a new HTTPRequester with default configuration
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	serviceCfg := params.Config.API
	timeout := serviceCfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	return &HTTPRequester{
		client: &http.Client{
			Timeout: timeout,
		},
		serviceCfg: &serviceCfg,
		authMgr:    params.AuthManager,
	}
}

// SetTimeout sets the timeout for the HTTP client
func (r *HTTPRequester) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// SetTransport replaces the transport of the HTTP client
func (r *HTTPRequester) SetTransport(transport http.RoundTripper) {
	r.client.Transport = transport
}

// WithMiddleware returns a requester sharing the same client whose requests
// pass through mws before the built-in chain.
func (r *HTTPRequester) WithMiddleware(mws ...Middleware) *HTTPRequester {
	clone := *r
	clone.outer = append(append([]Middleware{}, mws...), r.outer...)
	return &clone
}

func (r *HTTPRequester) doer() Doer {
	middlewares := append([]Middleware{}, r.outer...)
	middlewares = append(middlewares,
		WithRequestID(),
		WithLogging(),
		WithAuth(r.authMgr),
	)
	return Chain(r.client, middlewares...)
}

// BuildRouteExecutor creates a function that can execute requests for a specific route
func (r *HTTPRequester) BuildRouteExecutor(route *RouteConfig) (RouteExecutor, error) {
	if route == nil {
		return nil, fmt.Errorf("route config is nil")
	}
	if route.Method == "" || route.Path == "" {
		return nil, fmt.Errorf("route %q needs a method and a path", route.Name)
	}

	builder := NewHTTPRequestBuilder(r.serviceCfg, route)
	doer := r.doer()

	return func(ctx context.Context, params Params) (*Response, error) {
		req, err := builder.BuildRequest(ctx, params)
		if err != nil {
			return nil, err
		}
		logger.Debug("request route", zap.String("route", route.Name), zap.String("url", req.HttpRequest.URL.Redacted()))

		resp, err := r.execute(doer, req)
		if err != nil {
			logger.Debug("failed to execute request", zap.String("route", route.Name), zap.Error(err))
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, newAPIError(req, resp)
		}
		return resp, nil
	}, nil
}

// MustBuildRouteExecutor is BuildRouteExecutor for statically declared routes
func (r *HTTPRequester) MustBuildRouteExecutor(route *RouteConfig) RouteExecutor {
	executor, err := r.BuildRouteExecutor(route)
	if err != nil {
		panic(err)
	}
	return executor
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(doer Doer, req *Request) (resp *Response, err error) {
	httpResp, err := doer.Do(req.HttpRequest)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       bodyBytes,
		Headers:    httpResp.Header,
	}, nil
}
