package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/yes-simulation/accounts/internal/domain"
	"github.com/yes-simulation/accounts/internal/service"
	apperrors "github.com/yes-simulation/accounts/pkg/errors"
	"github.com/yes-simulation/accounts/pkg/httputil"
	"github.com/yes-simulation/accounts/pkg/middleware"
)

const maxBodyBytes = 1 << 20

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RefreshRequest is the JSON request body for token refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// --- Response types ---

// AccessResponse carries a refreshed access token.
type AccessResponse struct {
	Access string `json:"access"`
}

// MeResponse identifies the authenticated user.
type MeResponse struct {
	Username string `json:"username"`
}

// --- Handlers ---

// Register handles POST /auth/register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !h.decode(w, r, &req) {
		return
	}

	user, tokens, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, domain.AuthResult{Username: user.Username, Tokens: *tokens})
}

// Login handles PUT /auth/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !h.decode(w, r, &req) {
		return
	}

	user, tokens, err := h.service.Login(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, domain.AuthResult{Username: user.Username, Tokens: *tokens})
}

// RefreshTokens handles POST /auth/refresh_tokens/
func (h *AuthHandler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	access, err := h.service.RefreshTokens(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AccessResponse{Access: access})
}

// Me handles GET /auth/me/
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())
	if username == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	user, err := h.service.Me(r.Context(), username)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MeResponse{Username: user.Username})
}

// decode reads a JSON body into dst and writes a 400 on failure. An empty
// body decodes to the zero value so missing fields are reported by the
// service like any other field error.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit)), h.logger)
		return false
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
	return false
}
