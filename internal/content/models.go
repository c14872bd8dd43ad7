package content

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/brizzai/blogctl/internal/requester"
	"github.com/brizzai/blogctl/internal/session"
)

// Status is the publication state of a post
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDraft    Status = "draft"
)

// Valid reports whether the backend accepts s
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDraft:
		return true
	}
	return false
}

// Post is a blog post in client shape
type Post struct {
	ID            string        `json:"$id"`
	Title         string        `json:"title"`
	Slug          string        `json:"slug"`
	Content       string        `json:"content"`
	FeaturedImage string        `json:"featuredImage,omitempty"`
	Status        Status        `json:"status"`
	UserID        session.ID    `json:"userId,omitempty"`
	CreatedAt     string        `json:"$createdAt,omitempty"`
	UpdatedAt     string        `json:"$updatedAt,omitempty"`
	User          *session.User `json:"user,omitempty"`
}

// PostInput carries the writable post fields. Empty fields are left out
// of updates.
type PostInput struct {
	Title   string
	Slug    string
	Content string
	Status  Status
	// FeaturedImage is uploaded as the post's image when set
	FeaturedImage *requester.Upload
}

// PostList is the result of a list call
type PostList struct {
	Documents []Post `json:"documents"`
	Total     int    `json:"total"`
}

// File is an uploaded file in client shape
type File struct {
	ID           string `json:"$id"`
	Name         string `json:"name"`
	SizeOriginal int64  `json:"sizeOriginal"`
	MimeType     string `json:"mimeType"`
	CreatedAt    string `json:"$createdAt"`
	URL          string `json:"url"`
}

// apiPost accepts the backend's post shape along with the alternate keys
// some list endpoints use.
type apiPost struct {
	ID             string          `json:"id"`
	AltID          string          `json:"_id"`
	DollarID       string          `json:"$id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Content        string          `json:"content"`
	FeaturedImage  *string         `json:"featured_image"`
	FeaturedImage2 *string         `json:"featuredImage"`
	Status         Status          `json:"status"`
	User           json.RawMessage `json:"user"`
	UserID         json.RawMessage `json:"userId"`
	UserIDSnake    json.RawMessage `json:"user_id"`
	CreatedAt      string          `json:"created_at"`
	CreatedAtCamel string          `json:"createdAt"`
	CreatedAtAlt   string          `json:"$createdAt"`
	UpdatedAt      string          `json:"updated_at"`
	UpdatedAtCamel string          `json:"updatedAt"`
	UpdatedAtAlt   string          `json:"$updatedAt"`
}

func (p *apiPost) toPost() Post {
	post := Post{
		ID:        firstNonEmpty(p.ID, p.AltID, p.DollarID),
		Title:     p.Title,
		Slug:      p.Slug,
		Content:   p.Content,
		Status:    p.Status,
		CreatedAt: firstNonEmpty(p.CreatedAt, p.CreatedAtCamel, p.CreatedAtAlt),
		UpdatedAt: firstNonEmpty(p.UpdatedAt, p.UpdatedAtCamel, p.UpdatedAtAlt),
	}
	if p.FeaturedImage != nil {
		post.FeaturedImage = *p.FeaturedImage
	} else if p.FeaturedImage2 != nil {
		post.FeaturedImage = *p.FeaturedImage2
	}

	// The author is usually nested, older payloads carry only its id
	if isObject(p.User) {
		var user session.User
		if err := json.Unmarshal(p.User, &user); err == nil {
			post.User = &user
			post.UserID = user.ID
		}
	} else if isScalar(p.User) {
		post.UserID = session.ID(bytes.TrimSpace(p.User))
	}
	if post.UserID.IsZero() {
		for _, raw := range []json.RawMessage{p.UserID, p.UserIDSnake} {
			if isScalar(raw) {
				post.UserID = session.ID(bytes.TrimSpace(raw))
				break
			}
		}
	}
	return post
}

func decodePost(resp *requester.Response) (*Post, error) {
	var raw apiPost
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	post := raw.toPost()
	return &post, nil
}

// decodePostList accepts a bare array, a paginated {results} envelope,
// a {data} envelope or a single post object. Entries that are not
// objects are dropped.
func decodePostList(body []byte) (*PostList, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to decode post list: %w", err)
		}
	case '{':
		var envelope struct {
			Results json.RawMessage `json:"results"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode post list: %w", err)
		}
		switch {
		case isArray(envelope.Results):
			_ = json.Unmarshal(envelope.Results, &items)
		case isArray(envelope.Data):
			_ = json.Unmarshal(envelope.Data, &items)
		default:
			items = []json.RawMessage{body}
		}
	default:
		return nil, fmt.Errorf("unexpected post list payload: %.32s", body)
	}

	list := &PostList{Documents: make([]Post, 0, len(items))}
	for _, item := range items {
		if !isObject(item) {
			continue
		}
		var raw apiPost
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		list.Documents = append(list.Documents, raw.toPost())
	}
	list.Total = len(list.Documents)
	return list, nil
}

type apiFile struct {
	ID           string `json:"id"`
	File         string `json:"file"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	ContentType  string `json:"content_type"`
	UploadedAt   string `json:"uploaded_at"`
}

func (f *apiFile) toFile() File {
	return File{
		ID:           f.ID,
		Name:         f.OriginalName,
		SizeOriginal: f.FileSize,
		MimeType:     f.ContentType,
		CreatedAt:    f.UploadedAt,
		URL:          f.File,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func isObject(raw json.RawMessage) bool { return firstByte(raw) == '{' }

func isArray(raw json.RawMessage) bool { return firstByte(raw) == '[' }

// isScalar matches a string or number id
func isScalar(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == '"' || b == '-' || (b >= '0' && b <= '9')
}
