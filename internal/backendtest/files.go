package backendtest

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxUploadMemory = 10 << 20

var errNotAnImage = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")

type mediaFile struct {
	path        string
	contentType string
	content     []byte
}

type file struct {
	ID         string
	Name       string
	Path       string
	Size       int
	MimeType   string
	UploadedBy int
	UploadedAt time.Time
}

// File is a read-only view of an uploaded file record
type File struct {
	ID          string
	Name        string
	Size        int
	ContentType string
	UploadedBy  int
	Content     []byte
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

func (s *Server) fileURL(mediaPath string) string {
	return s.URL + "/media/" + mediaPath
}

func (s *Server) fileJSON(f *file) map[string]interface{} {
	var uploadedBy interface{}
	if acct, ok := s.accounts[f.UploadedBy]; ok {
		uploadedBy = acct.toJSON()
	}
	return map[string]interface{}{
		"id":            f.ID,
		"file":          s.fileURL(f.Path),
		"original_name": f.Name,
		"file_size":     f.Size,
		"content_type":  f.MimeType,
		"uploaded_by":   uploadedBy,
		"uploaded_at":   formatTime(f.UploadedAt),
	}
}

// saveMediaLocked stores the part under dir, renaming on collision
func (s *Server) saveMediaLocked(header *multipart.FileHeader, dir string) (*mediaFile, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	name := path.Base(header.Filename)
	mediaPath := path.Join(dir, name)
	if _, taken := s.media[mediaPath]; taken {
		ext := path.Ext(name)
		mediaPath = path.Join(dir, strings.TrimSuffix(name, ext)+"_"+uuid.NewString()[:7]+ext)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	media := &mediaFile{path: mediaPath, contentType: contentType, content: content}
	s.media[mediaPath] = media
	return media, nil
}

// AddFile stores a file record owned by userID, bypassing the API
func (s *Server) AddFile(userID int, name, contentType string, content []byte) File {
	s.mu.Lock()
	defer s.mu.Unlock()

	mediaPath := path.Join("uploads", uuid.NewString()[:7]+"_"+name)
	s.media[mediaPath] = &mediaFile{path: mediaPath, contentType: contentType, content: content}

	f := &file{
		ID:         uuid.NewString(),
		Name:       name,
		Path:       mediaPath,
		Size:       len(content),
		MimeType:   contentType,
		UploadedBy: userID,
		UploadedAt: s.now(),
	}
	s.files[f.ID] = f
	return s.fileViewLocked(f)
}

// GetFile returns the uploaded file record with id
func (s *Server) GetFile(id string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, false
	}
	return s.fileViewLocked(f), true
}

// FileCount returns the number of uploaded file records
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Server) fileViewLocked(f *file) File {
	view := File{
		ID:          f.ID,
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.MimeType,
		UploadedBy:  f.UploadedBy,
	}
	if media, ok := s.media[f.Path]; ok {
		view.Content = media.content
	}
	return view
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, acct *account) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusUnsupportedMediaType, "Unsupported media type in request.", "unsupported_media_type")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeFieldErrors(w, map[string][]string{"file": {"No file was submitted."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	media, err := s.saveMediaLocked(headers[0], "uploads")
	if err != nil {
		writeFieldErrors(w, map[string][]string{"file": {err.Error()}})
		return
	}

	f := &file{
		ID:         uuid.NewString(),
		Name:       headers[0].Filename,
		Path:       media.path,
		Size:       len(media.content),
		MimeType:   media.contentType,
		UploadedBy: acct.ID,
		UploadedAt: s.now(),
	}
	s.files[f.ID] = f

	writeJSON(w, http.StatusCreated, s.fileJSON(f))
}

// lookupFileLocked resolves the {id} path value, which must be a UUID
func (s *Server) lookupFileLocked(r *http.Request) (*file, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, false
	}
	f, ok := s.files[id.String()]
	return f, ok
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.lookupFileLocked(r)
	if !ok || f.UploadedBy != acct.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	delete(s.media, f.Path)
	delete(s.files, f.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

func (s *Server) handleFilePreview(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.lookupFileLocked(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":          s.fileURL(f.Path),
		"name":         f.Name,
		"size":         f.Size,
		"content_type": f.MimeType,
	})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	media, ok := s.media[r.PathValue("path")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", media.contentType)
	_, _ = w.Write(media.content)
}
