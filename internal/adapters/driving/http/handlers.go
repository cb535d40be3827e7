package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// staffRoles own storage connections and personal upload URLs
var staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleEmployee}

// multipartMemory is how much of a multipart body is buffered in memory
const multipartMemory = 8 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetMe godoc
// @Summary      Get current user
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserSummary
// @Router       /auth/me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.userService.Get(r.Context(), authCtx.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToSummary())
}

// File endpoints

// handleUploadFile godoc
// @Summary      Upload a file
// @Description  Store a file for the current user and relay it to their cloud storage
// @Tags         Files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file     formData  file    true   "File"
// @Param        message  formData  string  false  "Message"
// @Success      202      {object}  domain.FileUpload
// @Failure      400      {object}  ErrorResponse
// @Router       /files [post]
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	s.receiveFile(w, r, authCtx.UserID, authCtx.Email)
}

// handlePublicUpload godoc
// @Summary      Upload to a personal URL
// @Description  Clients upload a file to an employee's personal upload URL
// @Tags         Files
// @Accept       multipart/form-data
// @Produce      json
// @Param        slug     path      string  true   "Upload slug"
// @Param        file     formData  file    true   "File"
// @Param        email    formData  string  true   "Uploader email"
// @Param        message  formData  string  false  "Message"
// @Success      202      {object}  map[string]any
// @Failure      404      {object}  ErrorResponse
// @Router       /upload/{slug} [post]
func (s *Server) handlePublicUpload(w http.ResponseWriter, r *http.Request) {
	owner, err := s.userService.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil || !owner.CanReceiveUploads() {
		writeError(w, http.StatusNotFound, "upload page not found")
		return
	}
	s.receiveFile(w, r, owner.ID, "")
}

// receiveFile parses a multipart upload and hands it to the relay.
// An empty uploader means the email form field is required.
func (s *Server) receiveFile(w http.ResponseWriter, r *http.Request, ownerID, uploader string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if uploader == "" {
		uploader = r.FormValue("email")
		if strings.TrimSpace(uploader) == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}
	}

	upload, err := s.relayService.Store(r.Context(), driving.StoreFileRequest{
		UserID:        ownerID,
		Filename:      header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		Size:          header.Size,
		UploaderEmail: uploader,
		Message:       r.FormValue("message"),
		Body:          file,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Anonymous uploaders only learn that the file was received
	if GetAuthContext(r.Context()) == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"id":      upload.ID,
			"message": "File received",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, upload)
}

// handleListFiles returns the caller's most recent files.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	files, err := s.relayService.List(r.Context(), authCtx.UserID, queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		views = append(views, s.presentFile(r, f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": views})
}

// handleGetFile returns a file record owned by the caller. Admins see all files.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, ok := s.ownedFile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.presentFile(r, file))
}

// handleRetryFile re-enqueues a failed relay.
func (s *Server) handleRetryFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownedFile(w, r); !ok {
		return
	}
	file, err := s.relayService.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.presentFile(r, file))
}

func (s *Server) ownedFile(w http.ResponseWriter, r *http.Request) (*domain.FileUpload, bool) {
	authCtx := GetAuthContext(r.Context())
	file, err := s.relayService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	if file.UserID != authCtx.UserID && !authCtx.IsAdmin() {
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return file, true
}

// fileView adds the user-facing error guidance to a failed file
type fileView struct {
	*domain.FileUpload
	Failure *domain.ErrorMessage `json:"failure,omitempty"`
}

func (s *Server) presentFile(r *http.Request, file *domain.FileUpload) fileView {
	view := fileView{FileUpload: file}
	if file.Status != domain.FileStatusFailed || file.ErrorType == "" {
		return view
	}
	display := string(file.Provider)
	if desc, err := s.storageManager.Describe(file.Provider); err == nil {
		display = desc.DisplayName
	}
	authCtx := GetAuthContext(r.Context())
	msg := domain.DescribeErrorType(file.ErrorType, errors.New(file.ErrorMessage), display, authCtx != nil && authCtx.IsAdmin())
	view.Failure = &msg
	return view
}

// Helper functions

// writeServiceError maps domain sentinels to status codes. Unknown errors
// are logged and hidden behind a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var oauthErr *driving.OAuthError
	switch {
	case errors.As(err, &oauthErr):
		writeJSON(w, http.StatusBadRequest, oauthErr)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, domain.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "Provider not available")
	case errors.Is(err, domain.ErrProviderNotConfigured), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
