package services

import (
	"context"
	"fmt"

	"github.com/codearena/apiserver/internal/judge"
	"github.com/codearena/apiserver/types"
)

// SubmissionStore defines persistence operations for submissions.
type SubmissionStore interface {
	Create(ctx context.Context, submission types.Submission) (types.Submission, error)
	ListByParticipantAndProblem(ctx context.Context, participantID, problemID int) ([]types.Submission, error)
}

// TestCaseEvaluator runs candidate code against test cases through the
// execution service.
type TestCaseEvaluator interface {
	EvaluateTestCases(ctx context.Context, code, language string, cases []types.TestCase) ([]judge.CaseResult, error)
	TestAgainstReference(ctx context.Context, problem types.Problem, code, input, language string) (judge.Result, error)
}

// JudgedSubmission is the full outcome of one judging request: the
// persisted submission row, the per-case verdicts it was derived from,
// and any achievements the attempt newly earned.
type JudgedSubmission struct {
	Submission      types.Submission    `json:"submission"`
	Results         []judge.CaseResult  `json:"results"`
	NewAchievements []types.Achievement `json:"new_achievements,omitempty"`
}

// SubmissionService judges submissions: it fans the code out over the
// problem's test cases, aggregates the verdicts into one submission row,
// and triggers the acceptance side effects.
type SubmissionService struct {
	evaluator   TestCaseEvaluator
	submissions SubmissionStore
	problems    ProblemStore
	acceptance  *AcceptanceCoordinator
	events      Events
}

func NewSubmissionService(
	evaluator TestCaseEvaluator,
	submissions SubmissionStore,
	problems ProblemStore,
	acceptance *AcceptanceCoordinator,
	events Events,
) *SubmissionService {
	if events == nil {
		events = NopEvents{}
	}
	return &SubmissionService{
		evaluator:   evaluator,
		submissions: submissions,
		problems:    problems,
		acceptance:  acceptance,
		events:      events,
	}
}

// Judge runs one submit-for-grading request end to end. Per-case
// execution failures are data, not errors: they flow into aggregation.
// Only structural failures (missing problem, no test cases, unsupported
// language, dangling ids) abort.
func (s *SubmissionService) Judge(ctx context.Context, req types.SubmitRequest) (JudgedSubmission, error) {
	problem, err := s.problems.Get(ctx, req.ProblemID)
	if err != nil {
		return JudgedSubmission{}, fmt.Errorf("load problem: %w", err)
	}

	cases, err := s.problems.TestCases(ctx, problem.ID)
	if err != nil {
		return JudgedSubmission{}, fmt.Errorf("load test cases: %w", err)
	}

	results, err := s.evaluator.EvaluateTestCases(ctx, req.Code, req.Language, cases)
	if err != nil {
		return JudgedSubmission{}, err
	}

	status, passed, maxTime, maxMemory := aggregateResults(results)

	submission, err := s.submissions.Create(ctx, types.Submission{
		ParticipantID:   req.ParticipantID,
		ProblemID:       req.ProblemID,
		Status:          status,
		Code:            req.Code,
		Language:        req.Language,
		ExecutionTime:   maxTime,
		Memory:          maxMemory,
		InTeam:          req.InTeam,
		TestCasesPassed: passed,
	})
	if err != nil {
		return JudgedSubmission{}, fmt.Errorf("store submission: %w", err)
	}

	if err := s.problems.IncrementSubmissionCounters(ctx, problem.ID, status == types.SubmissionAccepted); err != nil {
		return JudgedSubmission{}, fmt.Errorf("update problem counters: %w", err)
	}

	judged := JudgedSubmission{Submission: submission, Results: results}
	if status == types.SubmissionAccepted {
		newAchievements, err := s.acceptance.OnAccepted(ctx, req.ParticipantID, req.ProblemID)
		if err != nil {
			return JudgedSubmission{}, err
		}
		judged.NewAchievements = newAchievements
	}

	s.events.SubmissionJudged(ctx, submission)
	return judged, nil
}

// TestCode is the ad hoc testing path: no submission is recorded, the
// candidate is checked against the reference solution's live output.
func (s *SubmissionService) TestCode(ctx context.Context, problemID int, code, input, language string) (judge.Result, error) {
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return judge.Result{}, fmt.Errorf("load problem: %w", err)
	}
	return s.evaluator.TestAgainstReference(ctx, problem, code, input, language)
}

// History returns the participant's attempts on a problem, newest first.
func (s *SubmissionService) History(ctx context.Context, participantID, problemID int) ([]types.Submission, error) {
	return s.submissions.ListByParticipantAndProblem(ctx, participantID, problemID)
}

// aggregateResults reduces per-case verdicts into the submission-level
// outcome. Status is Accepted only when every case passed. Reported time
// and memory are maxima taken over passing cases alone, so a failing
// case's inflated or zeroed numbers never pollute the reported metric;
// with no passing case both stay zero.
func aggregateResults(results []judge.CaseResult) (status types.SubmissionStatus, passed int, maxTime float64, maxMemory int64) {
	for _, res := range results {
		if res.Verdict != types.VerdictAccepted {
			continue
		}
		passed++
		if res.Time > maxTime {
			maxTime = res.Time
		}
		if res.Memory > maxMemory {
			maxMemory = res.Memory
		}
	}
	status = types.SubmissionFailed
	if len(results) > 0 && passed == len(results) {
		status = types.SubmissionAccepted
	}
	return status, passed, maxTime, maxMemory
}
