package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/votehall/apiserver/internal/live"
	"github.com/votehall/apiserver/internal/services"
)

// sseHeartbeat keeps idle event streams alive through proxies that drop
// quiet connections.
const sseHeartbeat = 30 * time.Second

// VoteHandler provides voting, tally, and live result endpoints.
type VoteHandler struct {
	voteService *services.VoteService
	hub         *live.Hub
	logger      *slog.Logger
}

func NewVoteHandler(voteService *services.VoteService, hub *live.Hub, logger *slog.Logger) *VoteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoteHandler{
		voteService: voteService,
		hub:         hub,
		logger:      logger,
	}
}

// VoteRouter registers voting routes under a room. Results and the event
// stream are public so shared result links work without an account; casting
// and eligibility require a session.
func VoteRouter(r chi.Router, handler *VoteHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/{roomID}", func(r chi.Router) {
		r.Get("/results", handler.Results)
		r.Get("/events", handler.Events)
		r.With(authMiddleware).Get("/eligibility", handler.Eligibility)
		r.With(authMiddleware).Post("/votes", handler.CastVote)
	})
}

// Results returns the room's current tally, recomputed from the votes
// ledger.
func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.voteService.Results(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Eligibility reports whether the caller has already voted in the room, and
// for whom, so a returning client can restore its voted state.
func (h *VoteHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	eligibility, err := h.voteService.CheckEligibility(r.Context(), chi.URLParam(r, "roomID"), ident.ID)
	if err != nil {
		writeServiceError(w, err, "room")
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

// CastVote appends the caller's vote. Having already voted is a terminal
// state, not a failure: the response carries the existing choice so the
// client lands in the same place either way.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	ident, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.CandidateID == "" {
		writeFieldError(w, http.StatusBadRequest, "candidate_id", "candidate_id is required")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	vote, err := h.voteService.Cast(r.Context(), roomID, req.CandidateID, ident.ID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyVoted) {
			eligibility, checkErr := h.voteService.CheckEligibility(r.Context(), roomID, ident.ID)
			if checkErr != nil {
				writeError(w, http.StatusConflict, "you have already voted in this room")
				return
			}
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":        "you have already voted in this room",
				"has_voted":    true,
				"candidate_id": eligibility.CandidateID,
			})
			return
		}
		writeServiceError(w, err, "vote")
		return
	}

	writeJSON(w, http.StatusCreated, vote)
}

// Events streams tally snapshots over server-sent events. The first snapshot
// is sent immediately; afterwards one arrives whenever the room's tally
// changes. Each snapshot is a full recompute, so dropped or duplicated
// signals never skew what the viewer sees.
func (h *VoteHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if _, err := h.voteService.Results(r.Context(), roomID); err != nil {
		writeServiceError(w, err, "room")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	signals, cancel := h.hub.Subscribe(roomID)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	if !h.sendSnapshot(w, flusher, r, roomID) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signals:
			if !h.sendSnapshot(w, flusher, r, roomID) {
				return
			}
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *VoteHandler) sendSnapshot(w http.ResponseWriter, flusher http.Flusher, r *http.Request, roomID string) bool {
	results, err := h.voteService.Results(r.Context(), roomID)
	if err != nil {
		if r.Context().Err() == nil {
			h.logger.Error("failed to recompute tally for stream", "room_id", roomID, "error", err)
		}
		return false
	}

	payload, err := json.Marshal(results)
	if err != nil {
		h.logger.Error("failed to encode tally snapshot", "room_id", roomID, "error", err)
		return false
	}

	if _, err := w.Write([]byte("event: tally\ndata: ")); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
