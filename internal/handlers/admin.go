package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/votehall/apiserver/internal/services"
	"github.com/votehall/apiserver/types"
)

// AdminHandler provides user administration and dashboard statistics.
type AdminHandler struct {
	userService  *services.UserService
	statsService *services.StatsService
	logger       *slog.Logger
}

func NewAdminHandler(userService *services.UserService, statsService *services.StatsService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		userService:  userService,
		statsService: statsService,
		logger:       logger,
	}
}

// AdminRouter registers admin routes. Every route requires an authenticated
// admin.
func AdminRouter(r chi.Router, handler *AdminHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Use(RequireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Put("/users/{userID}/role", handler.UpdateUserRole)
	r.Delete("/users/{userID}", handler.DeleteUser)
	r.Get("/stats", handler.Stats)
}

// ListUsers returns a paginated user listing.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole promotes or demotes a user. An admin cannot demote
// themselves, which keeps at least one reachable admin around.
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == ident.ID && req.Role != types.RoleAdmin {
		writeError(w, http.StatusConflict, "cannot demote your own account")
		return
	}

	user, err := h.userService.UpdateRole(r.Context(), userID, req.Role)
	if err != nil {
		writeServiceError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user along with their rooms and votes.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == ident.ID {
		writeError(w, http.StatusConflict, "cannot delete your own account")
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, err, "user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns the dashboard aggregates.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Overview(r.Context())
	if err != nil {
		h.logger.Error("failed to build stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
