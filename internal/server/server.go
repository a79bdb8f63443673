// Package server exposes the HTTP JSON API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docguard/internal/ratelimit"
	"docguard/internal/session"
	"docguard/internal/util"
	"docguard/pkg/analysis"
	"docguard/pkg/chat"
	"docguard/pkg/domain"
	"docguard/pkg/lifecycle"
	"docguard/pkg/queue"
	"docguard/pkg/storage"
	"docguard/pkg/store"

	"github.com/google/uuid"
)

const downloadURLExpiry = 15 * time.Minute

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store        store.Store
	Tokens       *session.TokenManager
	Orchestrator *lifecycle.Orchestrator
	Chat         *chat.Manager
	Objects      storage.ObjectStore
	Queue        queue.JobQueue

	RedisAddr     string
	RedisPassword string

	LoginRateLimitPerMinute  int
	UploadRateLimitPerMinute int
	ChatRateLimitPerMinute   int

	MaxUploadBytes int64
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	store          store.Store
	tokens         *session.TokenManager
	orchestrator   *lifecycle.Orchestrator
	chat           *chat.Manager
	objects        storage.ObjectStore
	queue          queue.JobQueue
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	loginLimiter   *ratelimit.FixedWindowLimiter
	uploadLimiter  *ratelimit.FixedWindowLimiter
	chatLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Tokens == nil || cfg.Orchestrator == nil || cfg.Chat == nil {
		return nil, errors.New("store, tokens, orchestrator and chat are required")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	uploadLimit := cfg.UploadRateLimitPerMinute
	if uploadLimit <= 0 {
		uploadLimit = 20
	}
	chatLimit := cfg.ChatRateLimitPerMinute
	if chatLimit <= 0 {
		chatLimit = 30
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "docguard:api:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	uploadLimiter, err := newLimiter("upload", uploadLimit)
	if err != nil {
		return nil, err
	}
	chatLimiter, err := newLimiter("chat", chatLimit)
	if err != nil {
		return nil, err
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = lifecycle.DefaultMaxUploadBytes
	}
	s := &Server{
		store:          cfg.Store,
		tokens:         cfg.Tokens,
		orchestrator:   cfg.Orchestrator,
		chat:           cfg.Chat,
		objects:        cfg.Objects,
		queue:          cfg.Queue,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		trustedProxies: cfg.TrustedProxies,
		loginLimiter:   loginLimiter,
		uploadLimiter:  uploadLimiter,
		chatLimiter:    chatLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/users/me/preferences", s.authenticated(s.handlePreferences))

	// documents (auth required)
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))
	s.mux.Handle("/api/documents/analyze", s.authenticated(s.handleAnalyze))
	s.mux.Handle("/api/documents/demo", s.authenticated(s.handleDemo))
	s.mux.Handle("/api/documents/", s.authenticated(s.handleDocumentByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	userID, ok, err := s.tokens.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, ok, err := s.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// handleLogin implements passwordless email login: the first login for an
// email creates the profile.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		s.audit(r, "api.login", "fail", "reason", "invalid_email")
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	user, ok, err := s.store.GetUserByEmail(email)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", "store_error")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !ok {
		now := time.Now().UTC()
		user = domain.User{
			ID:        uuid.NewString(),
			Email:     email,
			Language:  domain.ParseLanguage(req.Language),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.SaveUser(user); err != nil {
			s.audit(r, "api.login", "fail", "reason", "store_error")
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
	}
	token, err := s.tokens.NewSession(user.ID)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", "token_error")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "api.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.tokens.DeleteSession(token); err != nil {
		s.audit(r, "api.logout", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.audit(r, "api.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req preferencesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		writeError(w, http.StatusBadRequest, "language is required")
		return
	}
	updated, err := s.store.UpdateUserLanguage(user.ID, domain.ParseLanguage(req.Language))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// /api/documents
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		s.handleListDocuments(w, user)
	case http.MethodPost:
		s.handleUpload(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, user domain.User) {
	docs, err := s.store.ListDocuments(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": docs,
		"count": len(docs),
	})
}

// handleUpload runs the async path: validate, store the file, persist a
// pending record and enqueue an analysis job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.objects == nil || s.queue == nil {
		writeError(w, http.StatusNotImplemented, "uploads are not enabled")
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many uploads") {
		s.audit(r, "api.upload", "rate_limited", "user_id", user.ID)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	language := user.Language
	if v := r.FormValue("language"); v != "" {
		language = domain.ParseLanguage(v)
	}
	doc, err := s.orchestrator.CreateUpload(r.Context(), user, header.Filename, header.Size, language)
	if err != nil {
		s.audit(r, "api.upload", "fail", "user_id", user.ID, "reason", err.Error())
		writeLifecycleError(w, err)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if err := s.objects.Put(r.Context(), doc.StorageKey, file, header.Size, contentType); err != nil {
		s.failUpload(doc.ID)
		s.audit(r, "api.upload", "fail", "user_id", user.ID, "reason", "storage_error")
		writeError(w, http.StatusBadGateway, "upload storage unavailable")
		return
	}
	if _, err := s.queue.Enqueue(r.Context(), doc.ID); err != nil {
		s.failUpload(doc.ID)
		s.audit(r, "api.upload", "fail", "user_id", user.ID, "reason", "queue_error")
		writeError(w, http.StatusBadGateway, "analysis queue unavailable")
		return
	}
	s.audit(r, "api.upload", "success", "user_id", user.ID, "document_id", doc.ID)
	writeJSON(w, http.StatusAccepted, doc)
}

// failUpload marks a stranded pending record failed so it never sits
// pending forever.
func (s *Server) failUpload(id string) {
	status := domain.StatusFailed
	message := "Upload failed. Please try again."
	if _, err := s.store.UpdateDocument(id, store.DocumentPatch{Status: &status, ErrorMessage: &message}); err != nil {
		slog.Error("failed to mark upload failed", "document_id", id, "error", err)
	}
}

// handleAnalyze runs the synchronous path on raw text.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many analysis requests") {
		s.audit(r, "api.analyze", "rate_limited", "user_id", user.ID)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	language := user.Language
	if req.Language != "" {
		language = domain.ParseLanguage(req.Language)
	}
	doc, err := s.orchestrator.Submit(r.Context(), user, req.Name, req.Text, language)
	if err != nil {
		s.audit(r, "api.analyze", "fail", "user_id", user.ID, "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	s.audit(r, "api.analyze", "success", "user_id", user.ID, "document_id", doc.ID, "status", string(doc.Status))
	writeJSON(w, http.StatusOK, doc)
}

// handleDemo analyzes the bundled sample contract.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.uploadLimiter, "too many analysis requests") {
		s.audit(r, "api.demo", "rate_limited", "user_id", user.ID)
		return
	}
	doc, err := s.orchestrator.Submit(r.Context(), user, analysis.SampleContractName, analysis.SampleContract, user.Language)
	if err != nil {
		s.audit(r, "api.demo", "fail", "user_id", user.ID, "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	s.audit(r, "api.demo", "success", "user_id", user.ID, "document_id", doc.ID)
	writeJSON(w, http.StatusOK, doc)
}

// /api/documents/{id} or /api/documents/{id}/download or /api/documents/{id}/chat
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	doc, ok, err := s.store.GetDocument(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ok || doc.OwnerID != user.ID {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "download":
			s.handleDownload(w, r, doc)
		case "chat":
			s.handleChat(w, r, user, doc)
		default:
			http.NotFound(w, r)
		}
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDownload returns a pre-signed URL when the backend supports it and
// streams the file otherwise.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, doc domain.Document) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.objects == nil || doc.StorageKey == "" {
		writeError(w, http.StatusNotFound, "no stored file for this document")
		return
	}
	url, err := s.objects.PresignGet(r.Context(), doc.StorageKey, downloadURLExpiry)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	if !errors.Is(err, storage.ErrPresignUnsupported) {
		writeError(w, http.StatusBadGateway, "download unavailable")
		return
	}
	data, err := s.objects.Get(r.Context(), doc.StorageKey)
	if err != nil {
		writeError(w, http.StatusBadGateway, "download unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	_, _ = w.Write(data)
}

// handleChat answers a question about a completed analysis. A sessionId
// resumes an existing conversation; omitting it starts a new one.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User, doc domain.Document) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chat messages") {
		s.audit(r, "api.chat", "rate_limited", "user_id", user.ID)
		return
	}
	if doc.Status != domain.StatusCompleted || doc.Analysis == nil {
		writeError(w, http.StatusConflict, "document analysis is not completed")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var sess *chat.Session
	if req.SessionID != "" {
		existing, ok := s.chat.Session(req.SessionID)
		if !ok || existing.DocumentID != doc.ID {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		sess = existing
	} else {
		created, err := s.chat.CreateSession(doc.ID, *doc.Analysis, doc.Language)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "chat unavailable")
			return
		}
		sess = created
	}
	reply, err := sess.Send(r.Context(), req.Message)
	if err != nil {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	s.audit(r, "api.chat", "success", "user_id", user.ID, "document_id", doc.ID)
	writeJSON(w, http.StatusOK, chatResponse{SessionID: sess.ID, Reply: reply, Turns: sess.Turns()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type loginRequest struct {
	Email    string `json:"email"`
	Language string `json:"language,omitempty"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type preferencesRequest struct {
	Language string `json:"language"`
}

type analyzeRequest struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	SessionID string        `json:"sessionId"`
	Reply     string        `json:"reply"`
	Turns     []domain.Turn `json:"turns"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, "unsupported file type")
	case errors.Is(err, lifecycle.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	default:
		writeError(w, http.StatusInternalServerError, "upload failed")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
