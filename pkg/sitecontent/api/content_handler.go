package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/auth"
)

// multipartOverhead leaves room for multipart boundaries and headers around
// an upload of MaxUploadSize bytes
const multipartOverhead = 64 * 1024

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse acknowledges a request without further data
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LoginRequest is the request body for admin login
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned after a successful login. The token is also set
// as the session cookie.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EditRequest addresses a value or list inside the draft document
type EditRequest struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	Index int             `json:"index,omitempty"`
	From  int             `json:"from,omitempty"`
	To    int             `json:"to,omitempty"`
}

// PublishResponse reports the outcome of a publish
type PublishResponse struct {
	Success   bool                `json:"success"`
	Outcome   sitecontent.Outcome `json:"outcome"`
	Warning   string              `json:"warning,omitempty"`
	Error     string              `json:"error,omitempty"`
	Revision  string              `json:"revision,omitempty"`
	Unchanged bool                `json:"unchanged,omitempty"`
}

// UploadResponse is returned after an asset was stored
type UploadResponse struct {
	Success bool               `json:"success"`
	URL     string             `json:"url"`
	Asset   *sitecontent.Asset `json:"asset"`
}

// ContentHandler serves the admin API on top of a Publisher
type ContentHandler struct {
	publisher *sitecontent.Publisher
	auth      *auth.Service
	logger    *slog.Logger
}

// HandlerOption configures a ContentHandler
type HandlerOption func(*ContentHandler)

// WithAuth enables login, logout and token verification
func WithAuth(service *auth.Service) HandlerOption {
	return func(h *ContentHandler) {
		h.auth = service
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *ContentHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewContentHandler creates a new content handler
func NewContentHandler(publisher *sitecontent.Publisher, opts ...HandlerOption) *ContentHandler {
	h := &ContentHandler{
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the admin API routes
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware(h.logger), RecoveryMiddleware(h.logger))
	if h.auth != nil {
		r.Use(h.auth.Verifier())
	}

	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)

	r.Route("/content", func(r chi.Router) {
		r.Get("/", h.GetContent)
		r.With(RequestSizeLimitMiddleware(sitecontent.MaxUploadSize)).Post("/", h.ReplaceContent)
		r.Patch("/", h.ApplyEdit)
		r.Get("/draft", h.GetDraft)
		r.Post("/publish", h.Publish)
		r.Post("/items/append", h.AppendItem)
		r.Post("/items/remove", h.RemoveItem)
		r.Post("/items/move", h.MoveItem)
	})

	r.With(RequestSizeLimitMiddleware(sitecontent.MaxUploadSize+multipartOverhead)).Post("/upload", h.Upload)
	r.Get("/connectivity", h.Connectivity)

	return r
}

// Login checks the admin password and issues a session token
func (h *ContentHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		h.writeError(w, r, http.StatusNotImplemented, "Authentication is not configured")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.writeError(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}
	if err != nil {
		h.logger.Error("Login failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	h.auth.SetCookie(w, sess)
	render.JSON(w, r, LoginResponse{Success: true, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// Logout revokes the caller's session and clears the cookie
func (h *ContentHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		render.JSON(w, r, SuccessResponse{Success: true})
		return
	}
	if err := h.auth.Logout(r.Context()); err != nil {
		h.logger.Warn("Failed to revoke session", "error", err)
	}
	h.auth.ClearCookie(w)
	render.JSON(w, r, SuccessResponse{Success: true})
}

// GetContent reads the current document and loads it into the edit session
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	doc, err := h.publisher.GetCurrentDocument(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeDocument(w, r, doc)
}

// GetDraft returns the edit session's document
func (h *ContentHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	doc, err := h.publisher.DraftDocument(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeDocument(w, r, doc)
}

// ReplaceContent replaces the edit session with the request body and publishes it
func (h *ContentHandler) ReplaceContent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "Failed to read request body")
		return
	}
	doc, err := sitecontent.ParseDocument(data)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid content document: "+err.Error())
		return
	}

	result, err := h.publisher.PublishDocument(r.Context(), doc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writePublishResult(w, r, result)
}

// ApplyEdit replaces the value at a path in the draft document
func (h *ContentHandler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.publisher.ApplyEdit(r.Context(), req.Path, req.Value); err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, SuccessResponse{Success: true})
}

// AppendItem appends the request value to the list at path
func (h *ContentHandler) AppendItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.publisher.AppendItem(r.Context(), req.Path, req.Value); err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, SuccessResponse{Success: true})
}

// RemoveItem removes the list element at index
func (h *ContentHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.publisher.RemoveItem(r.Context(), req.Path, req.Index); err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, SuccessResponse{Success: true})
}

// MoveItem moves a list element between indexes
func (h *ContentHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdit(w, r)
	if !ok {
		return
	}
	if err := h.publisher.MoveItem(r.Context(), req.Path, req.From, req.To); err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, SuccessResponse{Success: true})
}

// Publish writes the draft document through the content store
func (h *ContentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	result, err := h.publisher.Publish(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writePublishResult(w, r, result)
}

// Upload stores the multipart "file" field and returns its public URL
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(sitecontent.MaxUploadSize); err != nil {
		if isBodyTooLarge(err) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "File too large (max 4.5 MB)")
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Failed to read file")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}

	asset, err := h.publisher.UploadAsset(r.Context(), sitecontent.Upload{
		FileName:  header.Filename,
		MediaType: mediaType,
		Data:      data,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, UploadResponse{Success: true, URL: asset.URL, Asset: asset})
}

// Connectivity reports the configured storage and remote reachability
func (h *ContentHandler) Connectivity(w http.ResponseWriter, r *http.Request) {
	report, err := h.publisher.CheckConnectivity(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *ContentHandler) decodeEdit(w http.ResponseWriter, r *http.Request) (*EditRequest, bool) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if req.Path == "" {
		h.writeError(w, r, http.StatusBadRequest, "Path is required")
		return nil, false
	}
	return &req, true
}

func (h *ContentHandler) writeDocument(w http.ResponseWriter, r *http.Request, doc *sitecontent.Document) {
	data, err := doc.Bytes()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *ContentHandler) writePublishResult(w http.ResponseWriter, r *http.Request, result *sitecontent.PublishResult) {
	resp := PublishResponse{
		Success:   !result.Failed(),
		Outcome:   result.Outcome,
		Warning:   result.Warning,
		Revision:  result.Revision,
		Unchanged: result.Unchanged,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}

	switch {
	case result.Conflict():
		render.Status(r, http.StatusConflict)
	case result.Failed() && errors.Is(result.Err, sitecontent.ErrStorageUnavailable):
		render.Status(r, http.StatusServiceUnavailable)
	case result.Failed():
		render.Status(r, http.StatusBadGateway)
	}
	render.JSON(w, r, resp)
}

// statusFor maps the sitecontent error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, sitecontent.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, sitecontent.ErrPathNotFound), errors.Is(err, sitecontent.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, sitecontent.ErrNoDocument), errors.Is(err, sitecontent.ErrRevisionConflict):
		return http.StatusConflict
	case errors.Is(err, sitecontent.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sitecontent.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sitecontent.ErrRemoteRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *ContentHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusUnauthorized {
		message = "Unauthorized"
	} else if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, r, status, message)
}

func (h *ContentHandler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Success: false, Error: message, RequestID: RequestID(r.Context())})
}
