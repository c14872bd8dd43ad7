package backendtest

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const requiredField = "This field is required."

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

func (s *Server) tokenResponse(acct *account) map[string]interface{} {
	access, refresh := s.IssuePair(acct.ID)
	return map[string]interface{}{
		"user":    acct.toJSON(),
		"refresh": refresh,
		"access":  access,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error", "parse_error")
		return
	}

	fields := make(map[string][]string)
	for name, value := range map[string]string{
		"username":         req.Username,
		"email":            req.Email,
		"password":         req.Password,
		"password_confirm": req.PasswordConfirm,
	} {
		if strings.TrimSpace(value) == "" {
			fields[name] = []string{requiredField}
		}
	}
	if req.Password != "" && len(req.Password) < 8 {
		fields["password"] = []string{"Ensure this field has at least 8 characters."}
	}
	if len(fields) == 0 && req.Password != req.PasswordConfirm {
		fields["non_field_errors"] = []string{"Passwords don't match"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acct := range s.accounts {
		if acct.Username == req.Username && req.Username != "" {
			fields["username"] = []string{"A user with that username already exists."}
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	acct := s.createUserLocked(User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, req.Password)

	writeJSON(w, http.StatusCreated, s.tokenResponse(acct))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error", "parse_error")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFieldErrors(w, map[string][]string{"non_field_errors": {"Email and password are required"}})
		return
	}

	s.mu.Lock()
	acct := s.findByEmailLocked(req.Email)
	s.mu.Unlock()

	if acct == nil || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		writeFieldErrors(w, map[string][]string{"non_field_errors": {"Invalid credentials"}})
		return
	}

	writeJSON(w, http.StatusOK, s.tokenResponse(acct))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeBody(r, &req); err != nil || req.Refresh == "" {
		writeFieldErrors(w, map[string][]string{"refresh": {requiredField}})
		return
	}

	claims, err := s.verify(req.Refresh, RefreshToken)
	if err != nil || s.isRevoked(claims.ID) {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired", "token_not_valid")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access": s.IssueToken(claims.UserID, AccessToken, s.AccessTTL),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	fail := s.failLogout
	s.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "logout unavailable"})
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = decodeBody(r, &req)
	if req.Refresh != "" {
		claims, err := s.verify(req.Refresh, RefreshToken)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid token"})
			return
		}
		s.mu.Lock()
		s.blacklist[claims.ID] = true
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, _ *http.Request, acct *account) {
	writeJSON(w, http.StatusOK, acct.toJSON())
}

func (s *Server) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[jti]
}
