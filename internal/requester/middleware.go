package requester

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/blogctl/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-attempt correlation id
const RequestIDHeader = "X-Request-ID"

// Doer sends a single HTTP request
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req)
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps a Doer with extra behaviour
type Middleware func(next Doer) Doer

// Chain wraps base so that the first middleware is the outermost
func Chain(base Doer, middlewares ...Middleware) Doer {
	doer := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		doer = middlewares[i](doer)
	}
	return doer
}

// WithAuth applies the auth manager to every outgoing attempt, so a retried
// request picks up a freshly stored token.
func WithAuth(authMgr AuthManager) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if authMgr == nil {
				return next.Do(req)
			}
			req = req.Clone(req.Context())
			if err := authMgr.ApplyAuth(req); err != nil {
				return nil, fmt.Errorf("failed to apply authentication: %w", err)
			}
			return next.Do(req)
		})
	}
}

// WithRequestID sets a random X-Request-ID unless the caller already did
func WithRequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = req.Clone(req.Context())
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			return next.Do(req)
		})
	}
}

// WithLogging logs each attempt at debug level
func WithLogging() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("url", req.URL.Redacted()),
				zap.String("request_id", req.Header.Get(RequestIDHeader)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Debug("request failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("request completed", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}
