package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wisechat/internal/ratelimit"
	"wisechat/internal/util"
	"wisechat/pkg/domain"
	"wisechat/services/chat/internal/app"
	"wisechat/services/chat/internal/security"
)

const (
	defaultMaxUploadBytes = 50 << 20
	maxJSONBytes          = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AppName        string
	AllowedOrigins []string
	TrustedProxies []string

	RedisAddr                string
	RedisPassword            string
	LoginRateLimitPerMinute  int
	SignupRateLimitPerMinute int
	MaxUploadBytes           int64
}

// Server exposes HTTP endpoints for the chat service.
type Server struct {
	app            *app.App
	appName        string
	mux            *http.ServeMux
	origins        []string
	trusted        *util.TrustedProxies
	maxUploadBytes int64
	loginLimiter   ratelimit.Limiter
	signupLimiter  ratelimit.Limiter
	alerter        *security.AuditAlerter
}

// New constructs the server with routes configured. Rate limiters are shared
// through Redis when an address is configured and kept in-process otherwise.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		var (
			limiter *ratelimit.FixedWindowLimiter
			err     error
		)
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "wisechat:ratelimit:"+name, limit, time.Minute)
		} else {
			limiter, err = ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
		}
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		appName:        cfg.AppName,
		mux:            http.NewServeMux(),
		origins:        cfg.AllowedOrigins,
		trusted:        trusted,
		maxUploadBytes: maxUpload,
		loginLimiter:   loginLimiter,
		signupLimiter:  signupLimiter,
		alerter:        security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, "wisechat:alerts"),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	h := util.WithCORS(s.origins, s.mux)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("chat", s.trusted, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// users
	s.mux.HandleFunc("POST /user/create", s.handleCreateUser)
	s.mux.HandleFunc("GET /user/all", s.handleListUsers)
	s.mux.Handle("GET /user/me", s.authenticated(s.handleMe))
	s.mux.HandleFunc("GET /user/{id}", s.handleGetUser)

	// chats
	s.mux.HandleFunc("GET /chat/all", s.handleListChats)
	s.mux.HandleFunc("POST /chat/create", s.handleCreateChat)
	s.mux.Handle("GET /chat/{id}", s.authenticated(s.handleGetChat))
	s.mux.HandleFunc("GET /chat/{scope}/{target}", s.routeChatPair)
	s.mux.HandleFunc("DELETE /chat/delete/{id}", s.handleDeleteChat)
	s.mux.HandleFunc("GET /chat/user/{id}/messages", s.handleUserMessages)

	// messages
	s.mux.Handle("POST /chat/message/create", s.authenticated(s.handleCreateMessage))
	s.mux.Handle("POST /chat/message_file/create", s.authenticated(s.handleCreateMessageWithFiles))
	s.mux.Handle("GET /chat/message/{id}/delete", s.authenticated(s.handleDeleteMessage))
	s.mux.Handle("POST /chat/message/delete", s.superuserOnly(s.handleBulkDeleteMessages))

	// files
	s.mux.Handle("GET /chat/files/all", s.superuserOnly(s.handleListFiles))
	s.mux.Handle("DELETE /chat/files/{id}", s.superuserOnly(s.handleDeleteFile))
}

// routeChatPair serves the two-segment GET routes under /chat/. They overlap
// as ServeMux patterns, so the first segment picks the handler.
func (s *Server) routeChatPair(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("scope") {
	case "admin":
		s.superuserOnly(s.handleAdminChats).ServeHTTP(w, r)
	case "user":
		s.guestOnly(s.handleGuestChats).ServeHTTP(w, r)
	case "download":
		s.handleDownload(w, r)
	default:
		switch r.PathValue("target") {
		case "messages":
			s.handleChatMessages(w, r)
		case "clear":
			s.superuserOnly(s.handleClearChat).ServeHTTP(w, r)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"app name": s.appName})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "not authenticated")
			return
		}
		user, err := s.app.ResolveCaller(r.Context(), token)
		if err != nil {
			s.audit(r, "token_rejected", "failure", "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) superuserOnly(next authHandler) http.Handler {
	return s.requireRole(domain.RoleSuperuser, next)
}

func (s *Server) guestOnly(next authHandler) http.Handler {
	return s.requireRole(domain.RoleGuest, next)
}

func (s *Server) requireRole(role domain.UserRole, next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if err := app.RequireRole(user, role); err != nil {
			s.audit(r, "role_denied", "failure", "user_id", user.ID, "required", string(role))
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter unavailable", "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert", "event", event, "ip", ip, "count", result.Count, "threshold", result.Threshold, "window", result.Window.String())
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	s.audit(r, "rate_limited", "failure")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// writeAppError maps application errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrAlreadyExists),
		errors.Is(err, app.ErrInvalidPassword),
		errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrNotGuest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredential), errors.Is(err, app.ErrInactiveOrMissingUser):
		writeUnauthorized(w, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "Permission denied!")
	case errors.Is(err, app.ErrSuperuserMissing):
		util.LoggerFromContext(r.Context()).Error("superuser missing", "path", r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrUploadFailed), errors.Is(err, app.ErrDataIntegrity):
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pagination reads offset/limit query parameters; absent values default to zero.
func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}
	return limit, offset, nil
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, msg)
}
