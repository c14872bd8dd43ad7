package requester

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is returned for any response with a status of 400 or above
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	// Message is the backend's own explanation, when it sent one
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, msg)
}

// IsUnauthorized reports whether the backend rejected the credentials
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports a 404 response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsValidation reports a 400 response, usually carrying field errors
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest
}

// FieldErrors returns per-field validation messages from the response body
func (e *APIError) FieldErrors() map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &raw); err != nil {
		return nil
	}

	fields := make(map[string][]string)
	for key, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[key] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			fields[key] = []string{single}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// AsAPIError unwraps err into an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is an *APIError with the given status
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == status
}

func newAPIError(req *Request, resp *Response) *APIError {
	apiErr := &APIError{
		Method:     req.Method,
		URL:        req.HttpRequest.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	apiErr.Message = extractMessage(apiErr)
	return apiErr
}

// extractMessage reads the usual REST framework error shapes
func extractMessage(e *APIError) string {
	var envelope struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &envelope); err == nil {
		for _, msg := range []string{envelope.Detail, envelope.Error, envelope.Message} {
			if msg != "" {
				return msg
			}
		}
	}

	fields := e.FieldErrors()
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(fields[key], " ")))
	}
	return strings.Join(parts, "; ")
}
