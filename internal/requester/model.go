package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Reserved parameter keys understood by the builder
const (
	// ParamBody is marshalled as the JSON request body
	ParamBody = "body"
	// ParamQuery holds url.Values appended to the query string
	ParamQuery = "query"
)

// Params are the values of a single route call
type Params map[string]interface{}

// RouteExecutor is a function that can execute a route with params
type RouteExecutor func(ctx context.Context, params Params) (*Response, error)

// Request represents a fully built HTTP request
type Request struct {
	URL         string
	Method      string
	Body        io.Reader
	Headers     map[string]string
	ContentType string
	HttpRequest *http.Request // The actual HTTP request
}

// Response represents a successful HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Decode unmarshals the JSON response body into out
func (r *Response) Decode(out interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Upload is a file sent as one part of a multipart body
type Upload struct {
	Filename string
	// ContentType is sniffed from the content when empty
	ContentType string
	Content     io.Reader
}
