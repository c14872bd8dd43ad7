package session

import (
	"net/http"

	"github.com/brizzai/blogctl/internal/requester"
)

var (
	registerRoute = &requester.RouteConfig{
		Name:        "register",
		Path:        "/auth/register/",
		Method:      http.MethodPost,
		Description: "Create an account and receive a token pair",
	}
	loginRoute = &requester.RouteConfig{
		Name:        "login",
		Path:        "/auth/login/",
		Method:      http.MethodPost,
		Description: "Exchange email and password for a token pair",
	}
	currentUserRoute = &requester.RouteConfig{
		Name:        "current-user",
		Path:        "/auth/user/",
		Method:      http.MethodGet,
		Description: "Profile of the authenticated user",
	}
	logoutRoute = &requester.RouteConfig{
		Name:        "logout",
		Path:        "/auth/logout/",
		Method:      http.MethodPost,
		Description: "Blacklist a refresh token",
	}
	refreshRoute = &requester.RouteConfig{
		Name:        "refresh",
		Path:        "/auth/refresh/",
		Method:      http.MethodPost,
		Description: "Exchange a refresh token for a new access token",
	}
)
