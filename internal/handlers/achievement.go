package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codearena/apiserver/internal/services"
	"github.com/codearena/apiserver/internal/store"
)

// AchievementHandler serves the achievement catalog and per-participant
// progress reads.
type AchievementHandler struct {
	achievements *services.AchievementService
	participants *services.ParticipantService
}

func NewAchievementHandler(achievements *services.AchievementService, participants *services.ParticipantService) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, participants: participants}
}

// AchievementRouter registers the catalog route.
func AchievementRouter(r chi.Router, handler *AchievementHandler) {
	r.Get("/", handler.Catalog)
}

// ParticipantRouter registers per-participant progress routes.
func ParticipantRouter(r chi.Router, handler *AchievementHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/{participantID}", func(r chi.Router) {
		r.With(authMiddleware).Get("/achievements", handler.GrantedTo)
		r.With(authMiddleware).Get("/experience", handler.ExperienceHistory)
	})
}

func (h *AchievementHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.achievements.Catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list achievements")
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (h *AchievementHandler) GrantedTo(w http.ResponseWriter, r *http.Request) {
	participantID, err := parseParticipantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grants, err := h.achievements.GrantedTo(r.Context(), participantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list achievements")
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *AchievementHandler) ExperienceHistory(w http.ResponseWriter, r *http.Request) {
	participantID, err := parseParticipantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.participants.ExperienceHistory(r.Context(), participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch experience history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseParticipantID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "participantID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid participant id")
	}
	return id, nil
}
