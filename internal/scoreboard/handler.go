package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
	"papanskor/internal/scoreboard/repository"
	"papanskor/internal/scoreboard/service"
	"papanskor/middleware"
	"papanskor/pkg/logger"
)

// Service is what the HTTP layer needs from the scoreboard service.
type Service interface {
	Create(ctx context.Context, caller permission.Caller, req model.CreateScoreboardRequest) (*model.Scoreboard, error)
	Get(ctx context.Context, caller permission.Caller, docID, shareToken string) (*service.View, error)
	List(ctx context.Context, caller permission.Caller) ([]model.Scoreboard, error)
	Update(ctx context.Context, caller permission.Caller, docID, shareToken string, p model.Patch) (*model.Scoreboard, error)
	Delete(ctx context.Context, caller permission.Caller, docID string) error
	ResolveShare(ctx context.Context, token string) (*model.ShareResolution, error)
}

type ScoreboardHandler struct {
	Service Service
}

func NewScoreboardHandler(svc Service) *ScoreboardHandler {
	return &ScoreboardHandler{Service: svc}
}

func (h *ScoreboardHandler) CreateScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateScoreboardRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body means defaults

	sb, err := h.Service.Create(r.Context(), middleware.CallerFrom(r.Context()), req)
	if err != nil {
		writeError(w, "create scoreboard", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.CreateScoreboardResponse{
		ID:           sb.ID,
		ViewToken:    sb.ViewToken,
		ControlToken: sb.ControlToken,
	})
}

// GetScoreboards returns one scoreboard when ?docId= or ?share= is given, otherwise the caller's list.
func (h *ScoreboardHandler) GetScoreboards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	caller := middleware.CallerFrom(r.Context())
	docID := r.URL.Query().Get("docId")
	share := r.URL.Query().Get("share")

	if docID == "" && share == "" {
		list, err := h.Service.List(r.Context(), caller)
		if err != nil {
			writeError(w, "list scoreboards", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	view, err := h.Service.Get(r.Context(), caller, docID, share)
	if err != nil {
		writeError(w, "get scoreboard", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// updateRequest shadows the patch layout so entries decode with absent keys preserved.
type updateRequest struct {
	model.Patch
	Layout model.LayoutEdit `json:"layout,omitempty"`
}

// UpdateScoreboard applies a partial write and returns the committed row.
func (h *ScoreboardHandler) UpdateScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	share := r.URL.Query().Get("share")
	if docID == "" && share == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	caller := middleware.CallerFrom(r.Context())
	patch := req.Patch
	if req.Layout != nil {
		// Entries may be partial; absent coordinates keep the stored position.
		current, err := h.Service.Get(r.Context(), caller, docID, share)
		if err != nil {
			writeError(w, "update scoreboard "+docID, err)
			return
		}
		patch.Layout = req.Layout.Apply(current.Layout)
	}

	row, err := h.Service.Update(r.Context(), caller, docID, share, patch)
	if err != nil {
		writeError(w, "update scoreboard "+docID, err)
		return
	}
	row.ViewToken, row.ControlToken = "", ""
	writeJSON(w, http.StatusOK, row)
}

func (h *ScoreboardHandler) DeleteScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	if err := h.Service.Delete(r.Context(), middleware.CallerFrom(r.Context()), docID); err != nil {
		writeError(w, "delete scoreboard "+docID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Scoreboard deleted successfully"))
}

func (h *ScoreboardHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.Service.ResolveShare(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, "resolve share", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to statuses. Permission failures carry a hint so the
// client can send the user to sign in or upgrade instead of showing a raw error.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Scoreboard not found", http.StatusNotFound)
	case errors.Is(err, permission.ErrSignInRequired):
		w.Header().Set("X-Required-Action", "sign-in")
		http.Error(w, "Sign in or upgrade to edit this scoreboard", http.StatusForbidden)
	case errors.Is(err, permission.ErrReadOnly), errors.Is(err, service.ErrForbidden):
		http.Error(w, "You do not have permission to change this scoreboard", http.StatusForbidden)
	case errors.Is(err, service.ErrEmptyPatch), errors.Is(err, service.ErrShareMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Sugar.Errorf("Handler: failed to %s: %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
