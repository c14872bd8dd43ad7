// Package backendtest runs an in-process fake of the blog REST backend.
//
// The fake follows the backend's wire shapes closely enough for client tests:
// simplejwt style HS256 tokens with user_id and token_type claims, REST
// framework error bodies, UUID post and file ids and multipart uploads. Tests
// can script failures with RejectNext and FailLogout and inspect traffic with
// Calls.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Route patterns, usable with Calls
const (
	RouteRegister    = "POST /auth/register/"
	RouteLogin       = "POST /auth/login/"
	RouteLogout      = "POST /auth/logout/"
	RouteRefresh     = "POST /auth/refresh/"
	RouteCurrentUser = "GET /auth/user/"
	RouteListCreate  = "GET /posts/{$}"
	RouteCreatePost  = "POST /posts/{$}"
	RoutePostDetail  = "GET /posts/{slug}/"
	RouteUpdatePost  = "PATCH /posts/{slug}/"
	RouteReplacePost = "PUT /posts/{slug}/"
	RouteDeletePost  = "DELETE /posts/{slug}/"
	RouteGetPost     = "GET /posts/get/{slug}/"
	RouteListPosts   = "GET /posts/list/"
	RouteUploadFile  = "POST /files/upload/"
	RouteDeleteFile  = "DELETE /files/{id}/delete/"
	RouteFilePreview = "GET /files/{id}/preview/"
	RouteMedia       = "GET /media/{path...}"
)

// ListShape selects how /posts/list/ wraps its result
type ListShape int

const (
	// ListPlain returns a bare JSON array
	ListPlain ListShape = iota
	// ListResults returns a paginated {count, results} envelope
	ListResults
	// ListData returns {data: [...]}
	ListData
	// ListSingle returns only the first post as an object
	ListSingle
)

// User is an account known to the fake backend
type User struct {
	ID         int
	Username   string
	Email      string
	FirstName  string
	LastName   string
	DateJoined time.Time
}

func (u *User) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"date_joined": formatTime(u.DateJoined),
	}
}

type account struct {
	User
	passwordHash []byte
}

// Server is a fake backend listening on a local httptest server
type Server struct {
	*httptest.Server

	// AccessTTL and RefreshTTL apply to tokens issued by login, register and refresh
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	secret []byte
	now    func() time.Time

	mu           sync.Mutex
	accounts     map[int]*account
	nextUserID   int
	posts        []*post
	files        map[string]*file
	media        map[string]*mediaFile
	blacklist    map[string]bool
	rejectNext   int
	failLogout   bool
	listShape    ListShape
	calls        map[string]int
	lastRequests map[string]*http.Request
}

// Option configures a Server
type Option func(*Server)

// WithClock replaces the clock used to issue and verify tokens
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithSecret sets the HS256 signing key
func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = []byte(secret)
	}
}

// New starts a fake backend that is closed when the test ends
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		AccessTTL:    5 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		secret:       []byte("backendtest-secret"),
		now:          time.Now,
		accounts:     make(map[int]*account),
		nextUserID:   1,
		files:        make(map[string]*file),
		media:        make(map[string]*mediaFile),
		blacklist:    make(map[string]bool),
		calls:        make(map[string]int),
		lastRequests: make(map[string]*http.Request),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, RouteRegister, s.handleRegister)
	s.handle(mux, RouteLogin, s.handleLogin)
	s.handle(mux, RouteRefresh, s.handleRefresh)
	s.handle(mux, RouteLogout, s.authenticate(s.handleLogout))
	s.handle(mux, RouteCurrentUser, s.authenticate(s.handleCurrentUser))

	s.handle(mux, RouteListCreate, s.authenticate(s.handleListCreate))
	s.handle(mux, RouteCreatePost, s.authenticate(s.handleCreatePost))
	s.handle(mux, RoutePostDetail, s.authenticate(s.handlePostDetail))
	s.handle(mux, RouteUpdatePost, s.authenticate(s.handleUpdatePost))
	s.handle(mux, RouteReplacePost, s.authenticate(s.handleUpdatePost))
	s.handle(mux, RouteDeletePost, s.authenticate(s.handleDeletePost))
	s.handle(mux, RouteGetPost, s.authenticate(s.handlePostDetail))
	s.handle(mux, RouteListPosts, s.authenticate(s.handleListPosts))

	s.handle(mux, RouteUploadFile, s.authenticate(s.handleUploadFile))
	s.handle(mux, RouteDeleteFile, s.authenticate(s.handleDeleteFile))
	s.handle(mux, RouteFilePreview, s.authenticate(s.handleFilePreview))
	s.handle(mux, RouteMedia, s.handleMedia)

	return mux
}

// handle registers h and counts every request routed to pattern
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		s.lastRequests[pattern] = r.Clone(r.Context())
		s.mu.Unlock()
		h(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *account)

// authenticate validates the bearer access token like the backend's
// IsAuthenticated permission.
func (s *Server) authenticate(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		rejected := s.rejectNext > 0
		if rejected {
			s.rejectNext--
		}
		s.mu.Unlock()
		if rejected {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type", "token_not_valid")
			return
		}

		token := extractToken(r.Header.Get("Authorization"))
		if token == "" {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.", "not_authenticated")
			return
		}

		claims, err := s.verify(token, AccessToken)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type", "token_not_valid")
			return
		}

		s.mu.Lock()
		acct, ok := s.accounts[claims.UserID]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found", "user_not_found")
			return
		}

		next(w, r, acct)
	}
}

// CreateUser adds an account and returns it with its assigned id
func (s *Server) CreateUser(u User, password string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(u, password).User
}

func (s *Server) createUserLocked(u User, password string) *account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("backendtest: failed to hash password: " + err.Error())
	}
	if u.ID == 0 {
		u.ID = s.nextUserID
	}
	if u.ID >= s.nextUserID {
		s.nextUserID = u.ID + 1
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now()
	}
	acct := &account{User: u, passwordHash: hash}
	s.accounts[u.ID] = acct
	return acct
}

func (s *Server) findByEmailLocked(email string) *account {
	for _, acct := range s.accounts {
		if acct.Email == email {
			return acct
		}
	}
	return nil
}

// RejectNext makes the next n authenticated requests fail with 401
func (s *Server) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = n
}

// FailLogout makes the logout endpoint answer 500
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// SetListShape changes the envelope of /posts/list/
func (s *Server) SetListShape(shape ListShape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listShape = shape
}

// Calls returns how many requests were routed to pattern
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// LastRequest returns a copy of the most recent request routed to pattern.
// Its body has already been consumed.
func (s *Server) LastRequest(pattern string) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequests[pattern]
}

// IsBlacklisted reports whether a refresh token was revoked by logout
func (s *Server) IsBlacklisted(refresh string) bool {
	claims := &tokenClaims{}
	// Revocation is tracked by jti, which is readable without verification
	if _, _, err := jwtParser.ParseUnverified(refresh, claims); err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[claims.ID]
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
