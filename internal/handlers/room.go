package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/votehall/apiserver/internal/services"
	"github.com/votehall/apiserver/internal/storage"
	"github.com/votehall/apiserver/types"
)

const maxImageFormMemory = 2 << 20

// RoomHandler provides HTTP handlers for rooms and their candidates.
type RoomHandler struct {
	roomService *services.RoomService
	storage     *storage.Storage
	logger      *slog.Logger
}

// NewRoomHandler constructs a handler. store may be nil when no object
// storage backend is configured; image uploads then return 503.
func NewRoomHandler(roomService *services.RoomService, store *storage.Storage, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{
		roomService: roomService,
		storage:     store,
		logger:      logger,
	}
}

// RoomRouter registers room and candidate routes on the given router.
// Everything here requires authentication; mutation additionally requires
// ownership, enforced in the service.
func RoomRouter(r chi.Router, handler *RoomHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", handler.ListRooms)
	r.With(authMiddleware).Post("/", handler.CreateRoom)
	r.Route("/{roomID}", func(r chi.Router) {
		r.With(authMiddleware).Get("/", handler.GetRoom)
		r.With(authMiddleware).Get("/manage", handler.ManageRoom)
		r.With(authMiddleware).Put("/", handler.UpdateRoom)
		r.With(authMiddleware).Delete("/", handler.DeleteRoom)
		r.With(authMiddleware).Post("/close", handler.CloseRoom)
		r.With(authMiddleware).Post("/candidates", handler.AddCandidate)
		r.With(authMiddleware).Put("/candidates/{candidateID}", handler.UpdateCandidate)
		r.With(authMiddleware).Delete("/candidates/{candidateID}", handler.RemoveCandidate)
		r.With(authMiddleware).Post("/candidates/{candidateID}/image", handler.UploadCandidateImage)
	})
}

type CandidateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type RoomUpsertRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Candidates  []CandidateRequest `json:"candidates"`
}

// ListRooms returns the caller's own rooms.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms, err := h.roomService.ListByOwner(r.Context(), ident.ID)
	if err != nil {
		h.logger.Error("failed to list rooms", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rooms})
}

// CreateRoom creates a room with its initial candidates, subject to the
// per-user quota and candidate bounds.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RoomUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	candidates := make([]types.Candidate, 0, len(req.Candidates))
	for _, candidate := range req.Candidates {
		candidates = append(candidates, types.Candidate{
			Name:        candidate.Name,
			Description: candidate.Description,
			ImageURL:    candidate.ImageURL,
		})
	}

	created, err := h.roomService.Create(r.Context(), ident.ID, req.Title, req.Description, candidates)
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRoom returns a room with its candidates for any authenticated viewer
// (the voting page view).
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	result, err := h.roomService.Get(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ManageRoom is the dashboard view of a room: owners only, and a foreign
// room surfaces as a permission error rather than leaking its data.
func (h *RoomHandler) ManageRoom(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	result, err := h.roomService.GetOwned(r.Context(), roomID, ident.ID)
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RoomUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.roomService.Update(r.Context(), ident.ID, types.VotingRoom{
		ID:          chi.URLParam(r, "roomID"),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// CloseRoom transitions a room to closed; closed rooms reject new votes.
func (h *RoomHandler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	closed, err := h.roomService.Close(r.Context(), ident.ID, chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.roomService.Delete(r.Context(), ident.ID, chi.URLParam(r, "roomID")); err != nil {
		writeServiceError(w, err, "room")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.roomService.AddCandidate(r.Context(), ident.ID, chi.URLParam(r, "roomID"), types.Candidate{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, err, "candidate")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RoomHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.roomService.UpdateCandidate(r.Context(), ident.ID, chi.URLParam(r, "roomID"), types.Candidate{
		ID:          chi.URLParam(r, "candidateID"),
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, err, "candidate")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RoomHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err = h.roomService.RemoveCandidate(r.Context(), ident.ID, chi.URLParam(r, "roomID"), chi.URLParam(r, "candidateID"))
	if err != nil {
		writeServiceError(w, err, "candidate")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadCandidateImage stores a candidate image in object storage and
// records its public URL. Limits: 1MB, JPEG/PNG/WebP, type sniffed from the
// bytes.
func (h *RoomHandler) UploadCandidateImage(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	candidateID := chi.URLParam(r, "candidateID")

	if err := r.ParseMultipartForm(maxImageFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "image", "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	contentType, err := storage.ValidateImage(data)
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "image", err.Error())
		return
	}

	key := storage.ImageKey(roomID, header.Filename)
	if err := h.storage.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		h.logger.Error("failed to store candidate image", "error", err, "key", key)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	imageURL := h.storage.PublicURL(key)
	if err := h.roomService.SetCandidateImage(r.Context(), ident.ID, roomID, candidateID, imageURL); err != nil {
		// Best effort: don't leave an orphaned object behind.
		if cleanupErr := h.storage.Delete(r.Context(), key); cleanupErr != nil {
			h.logger.Warn("failed to delete orphaned image", "error", cleanupErr, "key", key)
		}
		writeServiceError(w, err, "candidate")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"image_url": imageURL})
}
