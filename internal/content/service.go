// Package content reads and writes posts and files on the blog backend.
// Every call first makes sure the session holds a usable access token.
package content

import (
	"context"

	"github.com/brizzai/blogctl/internal/requester"
	"github.com/brizzai/blogctl/internal/session"
	"go.uber.org/fx"
)

// Service is the gateway to the post and file endpoints
type Service struct {
	session *session.Manager

	createPost  requester.RouteExecutor
	updatePost  requester.RouteExecutor
	deletePost  requester.RouteExecutor
	getPost     requester.RouteExecutor
	listPosts   requester.RouteExecutor
	uploadFile  requester.RouteExecutor
	deleteFile  requester.RouteExecutor
	filePreview requester.RouteExecutor
}

type ServiceParams struct {
	fx.In

	Session *session.Manager
}

// NewService builds the route executors on the session's retrying requester
func NewService(params ServiceParams) *Service {
	req := params.Session.Requester()
	return &Service{
		session:     params.Session,
		createPost:  req.MustBuildRouteExecutor(createPostRoute),
		updatePost:  req.MustBuildRouteExecutor(updatePostRoute),
		deletePost:  req.MustBuildRouteExecutor(deletePostRoute),
		getPost:     req.MustBuildRouteExecutor(getPostRoute),
		listPosts:   req.MustBuildRouteExecutor(listPostsRoute),
		uploadFile:  req.MustBuildRouteExecutor(uploadFileRoute),
		deleteFile:  req.MustBuildRouteExecutor(deleteFileRoute),
		filePreview: req.MustBuildRouteExecutor(filePreviewRoute),
	}
}

func (s *Service) ensureAuthenticated(ctx context.Context) error {
	if !s.session.EnsureValidToken(ctx) {
		return ErrAuthenticationRequired
	}
	return nil
}
