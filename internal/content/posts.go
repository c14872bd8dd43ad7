package content

import (
	"context"
	"fmt"

	"github.com/brizzai/blogctl/internal/logger"
	"github.com/brizzai/blogctl/internal/requester"
	"go.uber.org/zap"
)

// CreatePost creates a post. A missing slug is generated from the title
// and a missing status defaults to draft.
func (s *Service) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	slug := in.Slug
	if slug == "" {
		slug = GenerateSlug(in.Title)
	}
	status := in.Status
	if status == "" {
		status = StatusDraft
	}

	params := requester.Params{
		"title":   in.Title,
		"slug":    slug,
		"content": in.Content,
		"status":  string(status),
	}
	if in.FeaturedImage != nil {
		params[fieldFeaturedImage] = in.FeaturedImage
	}

	resp, err := s.createPost(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create post %q: %w", slug, err)
	}

	post, err := decodePost(resp)
	if err != nil {
		return nil, fmt.Errorf("create post %q: %w", slug, err)
	}
	logger.Debug("post created", zap.String("slug", post.Slug), zap.String("id", post.ID))
	return post, nil
}

// UpdatePost sends only the non-empty fields of in
func (s *Service) UpdatePost(ctx context.Context, slug string, in PostInput) (*Post, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	params := requester.Params{paramPostSlug: slug}
	for field, value := range map[string]string{
		"title":   in.Title,
		"slug":    in.Slug,
		"content": in.Content,
		"status":  string(in.Status),
	} {
		if value != "" {
			params[field] = value
		}
	}
	if in.FeaturedImage != nil {
		params[fieldFeaturedImage] = in.FeaturedImage
	}

	resp, err := s.updatePost(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("update post %q: %w", slug, err)
	}
	post, err := decodePost(resp)
	if err != nil {
		return nil, fmt.Errorf("update post %q: %w", slug, err)
	}
	return post, nil
}

// DeletePost removes a post owned by the caller
func (s *Service) DeletePost(ctx context.Context, slug string) error {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return err
	}
	if _, err := s.deletePost(ctx, requester.Params{paramPostSlug: slug}); err != nil {
		return fmt.Errorf("delete post %q: %w", slug, err)
	}
	logger.Debug("post deleted", zap.String("slug", slug))
	return nil
}

// GetPost fetches a single post by slug
func (s *Service) GetPost(ctx context.Context, slug string) (*Post, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	resp, err := s.getPost(ctx, requester.Params{paramPostSlug: slug})
	if err != nil {
		return nil, fmt.Errorf("get post %q: %w", slug, err)
	}
	post, err := decodePost(resp)
	if err != nil {
		return nil, fmt.Errorf("get post %q: %w", slug, err)
	}
	return post, nil
}

// ListPosts lists posts matching queries. Without queries no filter is
// sent and the backend applies its own default.
func (s *Service) ListPosts(ctx context.Context, queries ...Query) (*PostList, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	params := requester.Params{}
	if values := buildQuery(queries); len(values) > 0 {
		params[requester.ParamQuery] = values
	}

	resp, err := s.listPosts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	list, err := decodePostList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return list, nil
}

// DeletePostWithImage deletes post and then, best effort, the uploaded
// file its featured image refers to.
func (s *Service) DeletePostWithImage(ctx context.Context, post *Post) error {
	if post == nil {
		return fmt.Errorf("delete post: post is nil")
	}
	if err := s.DeletePost(ctx, post.Slug); err != nil {
		return err
	}
	if post.FeaturedImage == "" {
		return nil
	}

	id, ok := fileIDFrom(post.FeaturedImage)
	if !ok {
		logger.Debug("featured image is not an uploaded file, keeping it", zap.String("image", post.FeaturedImage))
		return nil
	}
	if err := s.DeleteFile(ctx, id); err != nil {
		logger.Warn("failed to delete featured image", zap.String("slug", post.Slug), zap.String("file_id", id), zap.Error(err))
	}
	return nil
}
