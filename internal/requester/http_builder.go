package requester

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"

	"github.com/brizzai/blogctl/internal/config"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// HTTPRequestBuilder turns a route and its params into an HTTP request
type HTTPRequestBuilder struct {
	serviceCfg  *config.APIConfig
	routeConfig *RouteConfig
}

// NewHTTPRequestBuilder creates a new HTTPRequestBuilder
func NewHTTPRequestBuilder(serviceCfg *config.APIConfig, routeConfig *RouteConfig) *HTTPRequestBuilder {
	return &HTTPRequestBuilder{
		serviceCfg:  serviceCfg,
		routeConfig: routeConfig,
	}
}

// BuildRequest builds a request from the route and parameters.
// Authentication is not applied here, it is attached when the request is sent.
func (b *HTTPRequestBuilder) BuildRequest(ctx context.Context, params Params) (*Request, error) {
	if b.routeConfig == nil {
		return nil, fmt.Errorf("route config is nil")
	}
	if b.serviceCfg == nil || b.serviceCfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is not configured")
	}

	// Build URL
	rawURL, used, err := b.buildURL(b.routeConfig.Path, params)
	if err != nil {
		return nil, err
	}
	rawURL, err = b.addQueryParams(rawURL, params, used)
	if err != nil {
		return nil, err
	}

	// Create request body
	body, contentType, err := b.createRequestBody(b.routeConfig, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	// Merge headers
	headers := make(map[string]string)
	if b.serviceCfg.UserAgent != "" {
		headers["User-Agent"] = b.serviceCfg.UserAgent
	}
	headers["Accept"] = "application/json"
	for k, v := range b.serviceCfg.Headers {
		headers[k] = v
	}
	for k, v := range b.routeConfig.Headers {
		headers[k] = v
	}

	// A typed nil *bytes.Buffer would be sent as a non-nil body
	var reader io.Reader
	if body != nil {
		reader = body
	}

	httpReq, err := http.NewRequestWithContext(ctx, b.routeConfig.Method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	return &Request{
		URL:         rawURL,
		Method:      b.routeConfig.Method,
		Body:        reader,
		Headers:     headers,
		ContentType: contentType,
		HttpRequest: httpReq,
	}, nil
}

// buildURL replaces {name} placeholders with escaped param values and
// reports which params were consumed by the path.
func (b *HTTPRequestBuilder) buildURL(path string, params Params) (string, map[string]bool, error) {
	used := make(map[string]bool)
	var missing []string

	path = placeholderPattern.ReplaceAllStringFunc(path, func(placeholder string) string {
		key := placeholder[1 : len(placeholder)-1]
		value, ok := params[key]
		if !ok || fmt.Sprintf("%v", value) == "" {
			missing = append(missing, key)
			return placeholder
		}
		used[key] = true
		return url.PathEscape(fmt.Sprintf("%v", value))
	})
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("missing path parameters: %s", strings.Join(missing, ", "))
	}

	return b.serviceCfg.BaseURL + path, used, nil
}

func (b *HTTPRequestBuilder) addQueryParams(baseURL string, params Params, used map[string]bool) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}

	q := u.Query()
	if extra, ok := params[ParamQuery].(url.Values); ok {
		for key, values := range extra {
			for _, value := range values {
				q.Add(key, value)
			}
		}
	}

	// Remaining scalar params become query params for GET requests
	if b.routeConfig.Method == http.MethodGet {
		for key, value := range params {
			if used[key] || key == ParamBody || key == ParamQuery {
				continue
			}
			q.Set(key, fmt.Sprintf("%v", value))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (b *HTTPRequestBuilder) createRequestBody(routeConfig *RouteConfig, params Params) (*bytes.Buffer, string, error) {
	switch routeConfig.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		// Handle multipart/form-data
		if routeConfig.MethodConfig.FileUpload != nil {
			return b.createMultipartBody(routeConfig, params)
		}
	}

	// Everything else only carries an explicit JSON body
	if body, ok := params[ParamBody]; ok && body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return bytes.NewBuffer(jsonData), "application/json", nil
	}
	return nil, "", nil
}

func (b *HTTPRequestBuilder) createMultipartBody(routeConfig *RouteConfig, params Params) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	uploadCfg := routeConfig.MethodConfig.FileUpload

	upload, _ := params[uploadCfg.FieldName].(*Upload)
	if upload == nil && uploadCfg.Required {
		return nil, "", fmt.Errorf("missing file for field %q", uploadCfg.FieldName)
	}
	if upload != nil {
		if err := writeFilePart(writer, uploadCfg, upload); err != nil {
			return nil, "", err
		}
	}

	// Add other form fields
	for _, field := range routeConfig.MethodConfig.FormFields {
		if value, exists := params[field]; exists {
			if err := writer.WriteField(field, fmt.Sprintf("%v", value)); err != nil {
				return nil, "", fmt.Errorf("failed to write form field: %w", err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, uploadCfg *FileUploadConfig, upload *Upload) error {
	if upload.Content == nil {
		return fmt.Errorf("file %q has no content", upload.Filename)
	}

	content := bufio.NewReaderSize(upload.Content, 512)
	contentType := upload.ContentType
	if contentType == "" {
		head, _ := content.Peek(512)
		contentType = http.DetectContentType(head)
	}
	if !typeAllowed(contentType, uploadCfg.AllowedTypes) {
		return fmt.Errorf("file type %s is not allowed for field %q", contentType, uploadCfg.FieldName)
	}

	filename := upload.Filename
	if filename == "" {
		filename = "file"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(uploadCfg.FieldName), escapeQuotes(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	var src io.Reader = content
	if uploadCfg.MaxSize > 0 {
		src = io.LimitReader(content, uploadCfg.MaxSize+1)
	}
	n, err := io.Copy(part, src)
	if err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if uploadCfg.MaxSize > 0 && n > uploadCfg.MaxSize {
		return fmt.Errorf("file %q exceeds the maximum size of %d bytes", filename, uploadCfg.MaxSize)
	}
	return nil
}

func typeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		if pattern == mediaType || pattern == "*/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}
	return false
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
