package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/votehall/apiserver/internal/identity"
	"github.com/votehall/apiserver/internal/services"
	"github.com/votehall/apiserver/internal/store"
	"github.com/votehall/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// AuthHandler provides registration, login, and session endpoints for both
// credential strategies.
type AuthHandler struct {
	userService *services.UserService
	tokens      *identity.TokenManager
	oauth       *identity.OAuthAuthenticator
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// oauth may be nil when no delegated provider is configured.
func NewAuthHandler(userService *services.UserService, tokens *identity.TokenManager, oauth *identity.OAuthAuthenticator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		oauth:       oauth,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router. Diagnostic routes
// are only mounted in dev: they leak account metadata and must not ship.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler, dev bool) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/oauth/callback", handler.OAuthCallback)
	r.With(authMiddleware).Get("/me", handler.Me)
	r.With(authMiddleware).Post("/update-password", handler.UpdatePassword)

	if dev {
		r.Post("/hash-password", handler.HashPassword)
		r.Post("/debug", handler.Debug)
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Register creates a member account and returns a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" {
		writeFieldError(w, http.StatusBadRequest, "email", "email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeFieldError(w, http.StatusBadRequest, "password", "password must be at least 6 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         types.RoleMember,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeFieldError(w, http.StatusConflict, "email", "email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies an email/password pair and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("failed to load user for login", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if user.PasswordHash == "" {
		// Provisioned through delegated login; there is no password to check.
		writeError(w, http.StatusUnauthorized, "this account uses OAuth login")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

type OAuthCallbackRequest struct {
	Code string `json:"code"`
}

// OAuthCallback finishes a delegated login: it exchanges the authorization
// code, provisions a member account on first login, and issues the same
// session token password logins use.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusNotImplemented, "oauth login is not configured")
		return
	}

	var req OAuthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeFieldError(w, http.StatusBadRequest, "code", "authorization code is required")
		return
	}

	user, err := h.oauth.Login(r.Context(), req.Code)
	if err != nil {
		h.logger.Warn("oauth login failed", "error", err)
		writeError(w, http.StatusUnauthorized, "oauth login failed")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), ident.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type UpdatePasswordRequest struct {
	UserID      string `json:"user_id,omitempty"`
	NewPassword string `json:"new_password"`
}

// UpdatePassword sets a new password for the caller, or for another user
// when the caller is an admin.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeFieldError(w, http.StatusBadRequest, "new_password", "password must be at least 6 characters")
		return
	}

	targetID := ident.ID
	if req.UserID != "" && req.UserID != ident.ID {
		if !ident.IsAdmin() {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
		targetID = req.UserID
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), targetID, string(hashed)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type HashPasswordRequest struct {
	Password string `json:"password"`
}

// HashPassword hashes a password. Dev-only helper.
func (h *AuthHandler) HashPassword(w http.ResponseWriter, r *http.Request) {
	var req HashPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeFieldError(w, http.StatusBadRequest, "password", "password must be at least 6 characters")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hashed_password": string(hashed)})
}

type DebugRequest struct {
	Email string `json:"email"`
}

// Debug reports whether an account exists and what shape it has. Dev-only:
// it leaks account metadata by design.
func (h *AuthHandler) Debug(w http.ResponseWriter, r *http.Request) {
	var req DebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"exists": false})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exists":       true,
		"role":         user.Role,
		"has_password": user.PasswordHash != "",
		"provider":     user.Provider,
	})
}
