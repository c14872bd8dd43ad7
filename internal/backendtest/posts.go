package backendtest

import (
	"mime/multipart"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	slugPattern   = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	validStatuses = map[string]bool{"active": true, "inactive": true, "draft": true}
)

type post struct {
	ID            string
	Title         string
	Slug          string
	Content       string
	FeaturedImage string
	Status        string
	UserID        int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Post is a read-only view of a stored post
type Post struct {
	ID            string
	Title         string
	Slug          string
	Content       string
	FeaturedImage string
	Status        string
	UserID        int
}

func (s *Server) postJSON(p *post) map[string]interface{} {
	// Stored media is served as an absolute URL, anything else verbatim
	var featured interface{}
	if _, ok := s.media[p.FeaturedImage]; ok {
		featured = s.fileURL(p.FeaturedImage)
	} else if p.FeaturedImage != "" {
		featured = p.FeaturedImage
	}
	var user interface{}
	if acct, ok := s.accounts[p.UserID]; ok {
		user = acct.toJSON()
	}
	return map[string]interface{}{
		"id":             p.ID,
		"title":          p.Title,
		"slug":           p.Slug,
		"content":        p.Content,
		"featured_image": featured,
		"status":         p.Status,
		"user":           user,
		"created_at":     formatTime(p.CreatedAt),
		"updated_at":     formatTime(p.UpdatedAt),
	}
}

func (s *Server) findPostLocked(slug string) (int, *post) {
	for i, p := range s.posts {
		if p.Slug == slug {
			return i, p
		}
	}
	return -1, nil
}

// AddPost stores a post directly, bypassing the API
func (s *Server) AddPost(p Post) Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	now := s.now()
	s.insertPostLocked(&post{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		FeaturedImage: p.FeaturedImage,
		Status:        p.Status,
		UserID:        p.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return p
}

// insertPostLocked keeps posts ordered newest first
func (s *Server) insertPostLocked(p *post) {
	s.posts = append([]*post{p}, s.posts...)
}

// GetPost returns the stored post with slug
func (s *Server) GetPost(slug string) (Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, p := s.findPostLocked(slug)
	if p == nil {
		return Post{}, false
	}
	return Post{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		FeaturedImage: p.FeaturedImage,
		Status:        p.Status,
		UserID:        p.UserID,
	}, true
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, acct *account) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusUnsupportedMediaType, "Unsupported media type in request.", "unsupported_media_type")
		return
	}

	fields := make(map[string][]string)
	title := r.FormValue("title")
	slug := r.FormValue("slug")
	content := r.FormValue("content")
	status := r.FormValue("status")
	if title == "" {
		fields["title"] = []string{requiredField}
	}
	if content == "" {
		fields["content"] = []string{requiredField}
	}
	if status == "" {
		status = "draft"
	}
	validatePostFields(fields, slug, status, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existing := s.findPostLocked(slug); existing != nil {
		fields["slug"] = []string{"post with this slug already exists."}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	image, err := s.storeImageLocked(r.MultipartForm)
	if err != nil {
		writeFieldErrors(w, map[string][]string{"featured_image": {err.Error()}})
		return
	}

	now := s.now()
	p := &post{
		ID:            uuid.NewString(),
		Title:         title,
		Slug:          slug,
		Content:       content,
		FeaturedImage: image,
		Status:        status,
		UserID:        acct.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.insertPostLocked(p)

	writeJSON(w, http.StatusCreated, s.postJSON(p))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, acct *account) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusUnsupportedMediaType, "Unsupported media type in request.", "unsupported_media_type")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Only the author may edit a post
	_, p := s.findPostLocked(r.PathValue("slug"))
	if p == nil || p.UserID != acct.ID {
		writeDetail(w, http.StatusNotFound, "No Post matches the given query.", "not_found")
		return
	}

	fields := make(map[string][]string)
	form := r.MultipartForm.Value
	if _, ok := form["slug"]; ok {
		newSlug := r.FormValue("slug")
		validatePostFields(fields, newSlug, "", false)
		if _, other := s.findPostLocked(newSlug); other != nil && other != p {
			fields["slug"] = []string{"post with this slug already exists."}
		}
	}
	if _, ok := form["status"]; ok {
		validatePostFields(fields, "", r.FormValue("status"), false)
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	image, err := s.storeImageLocked(r.MultipartForm)
	if err != nil {
		writeFieldErrors(w, map[string][]string{"featured_image": {err.Error()}})
		return
	}

	if v, ok := form["title"]; ok {
		p.Title = v[0]
	}
	if v, ok := form["slug"]; ok {
		p.Slug = v[0]
	}
	if v, ok := form["content"]; ok {
		p.Content = v[0]
	}
	if v, ok := form["status"]; ok {
		p.Status = v[0]
	}
	if image != "" {
		p.FeaturedImage = image
	}
	p.UpdatedAt = s.now()

	writeJSON(w, http.StatusOK, s.postJSON(p))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, p := s.findPostLocked(r.PathValue("slug"))
	if p == nil || p.UserID != acct.ID {
		writeDetail(w, http.StatusNotFound, "No Post matches the given query.", "not_found")
		return
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostDetail(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, p := s.findPostLocked(r.PathValue("slug"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "No Post matches the given query.", "not_found")
		return
	}
	writeJSON(w, http.StatusOK, s.postJSON(p))
}

// handleListCreate mirrors the generic list view, which defaults to active posts
func (s *Server) handleListCreate(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.filterPostsLocked(r))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := s.filterPostsLocked(r)
	switch s.listShape {
	case ListResults:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":    len(posts),
			"next":     nil,
			"previous": nil,
			"results":  posts,
		})
	case ListData:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": posts})
	case ListSingle:
		if len(posts) == 0 {
			writeJSON(w, http.StatusOK, []interface{}{})
			return
		}
		writeJSON(w, http.StatusOK, posts[0])
	default:
		writeJSON(w, http.StatusOK, posts)
	}
}

// filterPostsLocked applies the status filter, defaulting to active
func (s *Server) filterPostsLocked(r *http.Request) []map[string]interface{} {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "active"
	}
	notStatus := r.URL.Query().Get("status__ne")

	posts := make([]map[string]interface{}, 0, len(s.posts))
	for _, p := range s.posts {
		if p.Status != status || (notStatus != "" && p.Status == notStatus) {
			continue
		}
		posts = append(posts, s.postJSON(p))
	}
	return posts
}

func validatePostFields(fields map[string][]string, slug, status string, creating bool) {
	if slug == "" {
		if creating {
			fields["slug"] = []string{requiredField}
		}
	} else if !slugPattern.MatchString(slug) {
		fields["slug"] = []string{`Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`}
	}
	if status != "" && !validStatuses[status] {
		fields["status"] = []string{`"` + status + `" is not a valid choice.`}
	}
}

// storeImageLocked saves an uploaded featured_image and returns its media path
func (s *Server) storeImageLocked(form *multipart.Form) (string, error) {
	headers := form.File["featured_image"]
	if len(headers) == 0 {
		return "", nil
	}
	media, err := s.saveMediaLocked(headers[0], "posts/images")
	if err != nil {
		return "", err
	}
	if !isImage(media.contentType) {
		delete(s.media, media.path)
		return "", errNotAnImage
	}
	return media.path, nil
}
