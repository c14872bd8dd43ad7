package requester

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/brizzai/blogctl/internal/logger"
	"go.uber.org/zap"
)

var errBodyNotReplayable = errors.New("request body cannot be replayed")

// Refresher obtains a new access token and stores it
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to the Refresher interface
type RefresherFunc func(ctx context.Context) error

// Refresh calls f(ctx)
func (f RefresherFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

type refreshDisabledKey struct{}

type attemptKey struct{}

// Attempt tracks whether a logical request was already replayed after a refresh
type Attempt struct {
	retried atomic.Bool
}

// Retried reports whether the request was sent a second time
func (a *Attempt) Retried() bool {
	return a.retried.Load()
}

// WithoutRefresh marks ctx so that a 401 is returned as is. Requests made by
// the refresh flow itself carry this mark.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshDisabledKey{}, true)
}

func refreshDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(refreshDisabledKey{}).(bool)
	return disabled
}

// WithAttempt attaches a fresh Attempt to ctx and returns both
func WithAttempt(ctx context.Context) (context.Context, *Attempt) {
	attempt := &Attempt{}
	return context.WithValue(ctx, attemptKey{}, attempt), attempt
}

// AttemptFrom returns the Attempt attached to ctx, if any
func AttemptFrom(ctx context.Context) *Attempt {
	attempt, _ := ctx.Value(attemptKey{}).(*Attempt)
	return attempt
}

// RetryUnauthorized refreshes the session once when the backend answers 401
// and replays the original request. A second 401, a refresh failure or a
// request marked WithoutRefresh all surface the 401 response unchanged.
func RetryUnauthorized(refresher Refresher) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			if refreshDisabled(ctx) {
				return next.Do(req)
			}

			attempt := AttemptFrom(ctx)
			if attempt == nil {
				ctx, attempt = WithAttempt(ctx)
				req = req.WithContext(ctx)
			}

			resp, err := next.Do(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized || attempt.Retried() {
				return resp, err
			}

			retry, err := rewind(req)
			if err != nil {
				logger.Debug("not retrying unauthorized request", zap.String("url", req.URL.Redacted()), zap.Error(err))
				return resp, nil
			}

			attempt.retried.Store(true)
			if err := refresher.Refresh(ctx); err != nil {
				logger.Warn("token refresh failed", zap.Error(err))
				return resp, nil
			}

			drain(resp)
			logger.Debug("retrying request after token refresh", zap.String("url", req.URL.Redacted()))
			return next.Do(retry)
		})
	}
}

// rewind returns a copy of req with a fresh body
func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
