package requester

// RouteConfig holds the configuration for a specific backend route
type RouteConfig struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	Description string            `json:"description,omitempty"`
	Headers     map[string]string `json:"headers"`
	// Method specific configurations
	MethodConfig MethodConfig `json:"method_config"`
}

// MethodConfig holds method-specific configurations
type MethodConfig struct {
	// For GET requests
	QueryParams []string `json:"query_params,omitempty"`

	// For multipart/form-data
	FormFields []string `json:"form_fields,omitempty"`

	// For file uploads
	FileUpload *FileUploadConfig `json:"file_upload,omitempty"`
}

// FileUploadConfig holds configuration for file uploads
type FileUploadConfig struct {
	FieldName string `json:"field_name"`
	// AllowedTypes entries are MIME types, "image/*" matches any image
	AllowedTypes []string `json:"allowed_types"`
	MaxSize      int64    `json:"max_size"`
	// Required makes the builder reject requests without a file
	Required bool `json:"required"`
}
