package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"wisechat/pkg/domain"
	"wisechat/services/chat/internal/app"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin accepts the OAuth2 password form or an equivalent JSON body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	creds, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := s.app.Authenticate(r.Context(), creds.Username, creds.Password)
	switch {
	case errors.Is(err, app.ErrNotFound):
		s.audit(r, "login", "failure", "username", creds.Username, "reason", "unknown_user")
		writeError(w, http.StatusNotFound, "Invalid Credentials")
		return
	case errors.Is(err, app.ErrInvalidPassword):
		s.audit(r, "login", "failure", "username", creds.Username, "reason", "bad_password")
		writeError(w, http.StatusBadRequest, "Invalid Password")
		return
	case err != nil:
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "login", "success", "username", creds.Username)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w, "not authenticated")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, "signup", "failure", "username", req.Username, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	users, err := s.app.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.app.GetUser(r.Context(), id)
	if errors.Is(err, app.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User Not Found")
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	var creds credentialsRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &creds); err != nil {
			return creds, errors.New("invalid JSON body")
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
		if err := r.ParseForm(); err != nil {
			return creds, errors.New("invalid form body")
		}
		creds.Username = r.PostForm.Get("username")
		creds.Password = r.PostForm.Get("password")
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return creds, errors.New("username and password are required")
	}
	return creds, nil
}
