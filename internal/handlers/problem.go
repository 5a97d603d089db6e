package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codearena/apiserver/internal/services"
	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20
	maxBundleBytes     = 64 << 20
	adminRole          = "admin"
	formFieldBundle    = "bundle"
	formFieldProblem   = "problem"
	formFieldCases     = "test_cases"
)

// ProblemHandler provides HTTP handlers for the problem catalog,
// leaderboards and grading.
type ProblemHandler struct {
	problems     *services.ProblemService
	participants *services.ParticipantService
	leaderboard  *services.LeaderboardService
	grading      *services.GradingService
}

func NewProblemHandler(
	problems *services.ProblemService,
	participants *services.ParticipantService,
	leaderboard *services.LeaderboardService,
	grading *services.GradingService,
) *ProblemHandler {
	return &ProblemHandler{
		problems:     problems,
		participants: participants,
		leaderboard:  leaderboard,
		grading:      grading,
	}
}

// ProblemRouter registers problem routes on the given router.
func ProblemRouter(
	r chi.Router,
	handler *ProblemHandler,
	submissions *SubmissionHandler,
	authMiddleware func(http.Handler) http.Handler,
) {
	r.Get("/", handler.ListProblems)
	r.With(authMiddleware, handler.requireAdmin).Post("/", handler.CreateProblem)
	r.Route("/{problemID}", func(r chi.Router) {
		r.Get("/", handler.GetProblem)
		r.Get("/leaderboard", handler.Leaderboard)
		r.With(authMiddleware, handler.requireAdmin).Get("/testcases", handler.TestCases)
		r.With(authMiddleware, handler.requireAdmin).Get("/bundle", handler.Bundle)
		r.With(authMiddleware, handler.requireAdmin).Post("/grade", handler.Grade)
		r.With(authMiddleware).Post("/submissions", submissions.Submit)
		r.With(authMiddleware).Get("/submissions", submissions.History)
		r.With(authMiddleware).Post("/test", submissions.TestCode)
	})
}

func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	problems, total, err := h.problems.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}

	items := make([]ProblemResponse, 0, len(problems))
	for _, p := range problems {
		items = append(items, newProblemResponse(p))
	}

	writeJSON(w, http.StatusOK, ProblemListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	problem, err := h.problems.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch problem")
		return
	}

	writeJSON(w, http.StatusOK, newProblemResponse(problem))
}

// CreateProblem accepts either a JSON payload with inline test cases or
// a multipart form carrying a problem JSON field plus a tar.gz bundle of
// test case files.
func (h *ProblemHandler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	var req ProblemCreateRequest
	var bundle *services.BundleFile

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		parsed, parsedBundle, err := parseProblemForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = parsed
		bundle = parsedBundle
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.TestCases) == 0 && bundle == nil {
		writeError(w, http.StatusBadRequest, "test cases are required")
		return
	}

	creationDate := time.Now()
	if req.CreationDate != nil {
		creationDate = *req.CreationDate
	}

	problem := types.Problem{
		Name:         req.Name,
		Description:  req.Description,
		InputFormat:  req.InputFormat,
		OutputFormat: req.OutputFormat,
		SampleInput:  req.SampleInput,
		SampleOutput: req.SampleOutput,
		Difficulty:   req.Difficulty,
		Solution:     req.Solution,
		Language:     req.Language,
		CreationDate: creationDate,
	}
	if req.ExpirationDate != nil {
		problem.ExpirationDate = *req.ExpirationDate
	}

	cases := make([]types.TestCase, 0, len(req.TestCases))
	for _, tc := range req.TestCases {
		cases = append(cases, types.TestCase{Input: tc.Input, Output: tc.Output})
	}

	created, err := h.problems.Create(r.Context(), problem, cases, bundle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, newProblemResponse(created))
}

// TestCases exposes a problem's hidden test cases to administrators.
func (h *ProblemHandler) TestCases(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cases, err := h.problems.TestCases(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch test cases")
		return
	}

	writeJSON(w, http.StatusOK, cases)
}

// Bundle streams a problem's archived test-case bundle to
// administrators.
func (h *ProblemHandler) Bundle(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, key, err := h.problems.Bundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bundle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open bundle")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("stream bundle %s: %v", key, err)
	}
}

// Leaderboard returns the ranking for a problem, best submission per
// participant.
func (h *ProblemHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboard.ForProblem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// Grade runs the one-shot reward distribution for a problem.
func (h *ProblemHandler) Grade(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.grading.Grade(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "problem not found")
		case errors.Is(err, store.ErrAlreadyGraded):
			writeError(w, http.StatusConflict, "problem already graded")
		default:
			writeError(w, http.StatusInternalServerError, "failed to grade problem")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ProblemCreateRequest is the problem creation payload.
type ProblemCreateRequest struct {
	Name           string                  `json:"name"`
	Description    string                  `json:"description"`
	InputFormat    string                  `json:"input_format"`
	OutputFormat   string                  `json:"output_format"`
	SampleInput    string                  `json:"sample_input"`
	SampleOutput   string                  `json:"sample_output"`
	Difficulty     types.Difficulty        `json:"difficulty"`
	Solution       string                  `json:"solution"`
	Language       string                  `json:"language"`
	CreationDate   *time.Time              `json:"creation_date"`
	ExpirationDate *time.Time              `json:"expiration_date"`
	TestCases      []TestCaseCreateRequest `json:"test_cases"`
}

// TestCaseCreateRequest is one inline input/output pair.
type TestCaseCreateRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

func (req ProblemCreateRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return errors.New("description is required")
	}
	return nil
}

// ProblemResponse is a problem read payload with its derived
// acceptance rate.
type ProblemResponse struct {
	types.Problem
	AcceptanceRate float64 `json:"acceptance_rate"`
}

func newProblemResponse(p types.Problem) ProblemResponse {
	return ProblemResponse{Problem: p, AcceptanceRate: p.AcceptanceRate()}
}

// ProblemListResponse is the paginated list response payload.
type ProblemListResponse struct {
	Items []ProblemResponse `json:"items"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Total int               `json:"total"`
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseProblemID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "problemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid problem id")
	}
	return id, nil
}

func parseProblemForm(r *http.Request) (ProblemCreateRequest, *services.BundleFile, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return ProblemCreateRequest{}, nil, errors.New("invalid multipart form")
	}

	var req ProblemCreateRequest
	rawProblem := strings.TrimSpace(r.FormValue(formFieldProblem))
	if rawProblem == "" {
		return ProblemCreateRequest{}, nil, errors.New("problem field is required")
	}
	if err := json.Unmarshal([]byte(rawProblem), &req); err != nil {
		return ProblemCreateRequest{}, nil, errors.New("invalid problem field")
	}

	if rawCases := strings.TrimSpace(r.FormValue(formFieldCases)); rawCases != "" {
		if err := json.Unmarshal([]byte(rawCases), &req.TestCases); err != nil {
			return ProblemCreateRequest{}, nil, errors.New("invalid test cases field")
		}
	}

	bundle, err := parseBundleFile(r.MultipartForm)
	if err != nil {
		return ProblemCreateRequest{}, nil, err
	}
	return req, bundle, nil
}

func parseBundleFile(form *multipart.Form) (*services.BundleFile, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[formFieldBundle]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one bundle file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle file: %w", err)
	}

	data, err := readFileLimited(file, maxBundleBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.BundleFile{
		Filename: fileHeader.Filename,
		Data:     data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func (h *ProblemHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		participantID, err := participantIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		participant, err := h.participants.GetByID(r.Context(), participantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load participant")
			return
		}

		if !strings.EqualFold(participant.Role, adminRole) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
