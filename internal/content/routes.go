package content

import (
	"net/http"

	"github.com/brizzai/blogctl/internal/requester"
)

// MaxUploadSize caps files sent to the backend
const MaxUploadSize = 10 << 20

const (
	fieldFeaturedImage = "featured_image"
	fieldFile          = "file"
	paramPostSlug      = "post_slug"
	paramFileID        = "file_id"
)

var postFormFields = []string{"title", "slug", "content", "status"}

var (
	createPostRoute = &requester.RouteConfig{
		Name:        "create-post",
		Path:        "/posts/",
		Method:      http.MethodPost,
		Description: "Create a post, optionally with a featured image",
		MethodConfig: requester.MethodConfig{
			FormFields: postFormFields,
			FileUpload: &requester.FileUploadConfig{
				FieldName:    fieldFeaturedImage,
				AllowedTypes: []string{"image/*"},
				MaxSize:      MaxUploadSize,
			},
		},
	}
	updatePostRoute = &requester.RouteConfig{
		Name:        "update-post",
		Path:        "/posts/{" + paramPostSlug + "}/",
		Method:      http.MethodPatch,
		Description: "Partially update a post owned by the caller",
		MethodConfig: requester.MethodConfig{
			FormFields: postFormFields,
			FileUpload: &requester.FileUploadConfig{
				FieldName:    fieldFeaturedImage,
				AllowedTypes: []string{"image/*"},
				MaxSize:      MaxUploadSize,
			},
		},
	}
	deletePostRoute = &requester.RouteConfig{
		Name:        "delete-post",
		Path:        "/posts/{" + paramPostSlug + "}/",
		Method:      http.MethodDelete,
		Description: "Delete a post owned by the caller",
	}
	getPostRoute = &requester.RouteConfig{
		Name:        "get-post",
		Path:        "/posts/get/{" + paramPostSlug + "}/",
		Method:      http.MethodGet,
		Description: "Fetch a post by slug",
	}
	listPostsRoute = &requester.RouteConfig{
		Name:        "list-posts",
		Path:        "/posts/list/",
		Method:      http.MethodGet,
		Description: "List posts, active ones unless a status filter is given",
		MethodConfig: requester.MethodConfig{
			QueryParams: []string{"status", "status__ne"},
		},
	}
	uploadFileRoute = &requester.RouteConfig{
		Name:        "upload-file",
		Path:        "/files/upload/",
		Method:      http.MethodPost,
		Description: "Upload a file",
		MethodConfig: requester.MethodConfig{
			FileUpload: &requester.FileUploadConfig{
				FieldName: fieldFile,
				MaxSize:   MaxUploadSize,
				Required:  true,
			},
		},
	}
	deleteFileRoute = &requester.RouteConfig{
		Name:        "delete-file",
		Path:        "/files/{" + paramFileID + "}/delete/",
		Method:      http.MethodDelete,
		Description: "Delete a file uploaded by the caller",
	}
	filePreviewRoute = &requester.RouteConfig{
		Name:        "file-preview",
		Path:        "/files/{" + paramFileID + "}/preview/",
		Method:      http.MethodGet,
		Description: "Resolve the public URL of a file",
	}
)
