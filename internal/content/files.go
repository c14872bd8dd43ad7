package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/brizzai/blogctl/internal/logger"
	"github.com/brizzai/blogctl/internal/requester"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadFile uploads a file and returns its record
func (s *Service) UploadFile(ctx context.Context, upload *requester.Upload) (*File, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, fmt.Errorf("upload file: no file given")
	}

	resp, err := s.uploadFile(ctx, requester.Params{fieldFile: upload})
	if err != nil {
		return nil, fmt.Errorf("upload file %q: %w", upload.Filename, err)
	}

	var raw apiFile
	if err := resp.Decode(&raw); err != nil {
		return nil, fmt.Errorf("upload file %q: %w", upload.Filename, err)
	}
	file := raw.toFile()
	logger.Debug("file uploaded", zap.String("id", file.ID), zap.String("name", file.Name), zap.Int64("size", file.SizeOriginal))
	return &file, nil
}

// DeleteFile deletes a file uploaded by the caller
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return err
	}
	fileID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}

	if _, err := s.deleteFile(ctx, requester.Params{paramFileID: fileID.String()}); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// FilePreview resolves the public URL of a file
func (s *Service) FilePreview(ctx context.Context, id string) (string, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return "", err
	}
	fileID, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}

	resp, err := s.filePreview(ctx, requester.Params{paramFileID: fileID.String()})
	if err != nil {
		return "", fmt.Errorf("preview file %s: %w", fileID, err)
	}
	var preview struct {
		URL string `json:"url"`
	}
	if err := resp.Decode(&preview); err != nil {
		return "", fmt.Errorf("preview file %s: %w", fileID, err)
	}
	return preview.URL, nil
}

// FileDownload returns the URL a file can be downloaded from
func (s *Service) FileDownload(ctx context.Context, id string) (string, error) {
	return s.FilePreview(ctx, id)
}

// FileView returns the URL a file can be viewed at
func (s *Service) FileView(ctx context.Context, id string) (string, error) {
	return s.FilePreview(ctx, id)
}

// ReplaceFeaturedImage uploads a new image, attaches it to the post and
// then deletes the previously uploaded file. A failed cleanup is logged;
// the updated post is still returned.
func (s *Service) ReplaceFeaturedImage(ctx context.Context, slug, oldFileID string, upload *requester.Upload) (*Post, error) {
	if upload == nil || upload.Content == nil {
		return nil, fmt.Errorf("replace featured image: no file given")
	}

	// The content is sent twice, once as a file and once as the post image
	content, err := io.ReadAll(io.LimitReader(upload.Content, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("replace featured image: %w", err)
	}
	if len(content) > MaxUploadSize {
		return nil, fmt.Errorf("replace featured image: file %q exceeds the maximum size of %d bytes", upload.Filename, MaxUploadSize)
	}
	clone := func() *requester.Upload {
		return &requester.Upload{
			Filename:    upload.Filename,
			ContentType: upload.ContentType,
			Content:     bytes.NewReader(content),
		}
	}

	file, err := s.UploadFile(ctx, clone())
	if err != nil {
		return nil, err
	}

	post, err := s.UpdatePost(ctx, slug, PostInput{FeaturedImage: clone()})
	if err != nil {
		if cleanupErr := s.DeleteFile(ctx, file.ID); cleanupErr != nil {
			logger.Warn("failed to remove orphaned upload", zap.String("file_id", file.ID), zap.Error(cleanupErr))
		}
		return nil, err
	}

	if oldFileID != "" {
		if err := s.DeleteFile(ctx, oldFileID); err != nil {
			logger.Warn("failed to delete previous featured image", zap.String("slug", slug), zap.String("file_id", oldFileID), zap.Error(err))
		}
	}
	return post, nil
}

// fileIDFrom extracts an uploaded file id from a featured image reference,
// which is either the id itself or a URL whose base name is the id.
func fileIDFrom(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return id.String(), true
	}

	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	base := path.Base(strings.TrimSuffix(p, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if id, err := uuid.Parse(base); err == nil {
		return id.String(), true
	}
	return "", false
}
