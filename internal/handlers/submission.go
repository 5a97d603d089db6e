package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/codearena/apiserver/internal/judge"
	"github.com/codearena/apiserver/internal/services"
	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

// SubmissionHandler provides HTTP handlers for judging submissions and
// ad hoc code testing.
type SubmissionHandler struct {
	submissions *services.SubmissionService
}

func NewSubmissionHandler(submissions *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Submit judges a submission against the problem's test cases and
// records the outcome.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	problemID, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	participantID, err := participantIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	judged, err := h.submissions.Judge(r.Context(), types.SubmitRequest{
		ParticipantID: participantID,
		ProblemID:     problemID,
		Code:          req.Code,
		Language:      req.Language,
		InTeam:        req.InTeam,
	})
	if err != nil {
		writeJudgingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, judged)
}

// TestCode runs code against the problem's reference solution without
// recording a submission.
func (h *SubmissionHandler) TestCode(w http.ResponseWriter, r *http.Request) {
	problemID, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := participantIDFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := h.submissions.TestCode(r.Context(), problemID, req.Code, req.Input, req.Language)
	if err != nil {
		writeJudgingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// History lists the authenticated participant's attempts on a problem,
// newest first.
func (h *SubmissionHandler) History(w http.ResponseWriter, r *http.Request) {
	problemID, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	participantID, err := participantIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	submissions, err := h.submissions.History(r.Context(), participantID, problemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch submissions")
		return
	}

	writeJSON(w, http.StatusOK, submissions)
}

func writeJudgingError(w http.ResponseWriter, err error) {
	var refErr *judge.ReferenceSolutionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "problem not found")
	case errors.Is(err, judge.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, "unsupported language")
	case errors.Is(err, judge.ErrNoTestCases):
		writeError(w, http.StatusBadRequest, "problem has no test cases")
	case errors.Is(err, judge.ErrNoReferenceSolution):
		writeError(w, http.StatusBadRequest, "problem has no reference solution")
	case errors.As(err, &refErr):
		writeError(w, http.StatusBadRequest, refErr.Error())
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "unknown participant or problem")
	default:
		writeError(w, http.StatusInternalServerError, "failed to judge code")
	}
}

type SubmitCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	InTeam   bool   `json:"in_team"`
}

type TestCodeRequest struct {
	Code     string `json:"code"`
	Input    string `json:"input"`
	Language string `json:"language"`
}
