package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codearena/apiserver/internal/judge"
	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

// fakeProblemStore serves a fixed problem and test case set.
type fakeProblemStore struct {
	problem      types.Problem
	cases        []types.TestCase
	total        int
	successful   int
	created      *types.Problem
	createdCases []types.TestCase
	createErr    error
}

func (f *fakeProblemStore) Get(_ context.Context, id int) (types.Problem, error) {
	if id != f.problem.ID {
		return types.Problem{}, store.ErrNotFound
	}
	return f.problem, nil
}

func (f *fakeProblemStore) List(context.Context, int, int) ([]types.Problem, int, error) {
	return []types.Problem{f.problem}, 1, nil
}

func (f *fakeProblemStore) Create(_ context.Context, p types.Problem, cases []types.TestCase) (types.Problem, error) {
	if f.createErr != nil {
		return types.Problem{}, f.createErr
	}
	p.ID = 1
	f.created = &p
	f.createdCases = cases
	return p, nil
}

func (f *fakeProblemStore) TestCases(_ context.Context, problemID int) ([]types.TestCase, error) {
	if problemID != f.problem.ID {
		return nil, store.ErrNotFound
	}
	return f.cases, nil
}

func (f *fakeProblemStore) IncrementSubmissionCounters(_ context.Context, _ int, accepted bool) error {
	f.total++
	if accepted {
		f.successful++
	}
	return nil
}

// fakeSubmissionStore appends rows in memory.
type fakeSubmissionStore struct {
	rows   []types.Submission
	nextID int64
}

func (f *fakeSubmissionStore) Create(_ context.Context, s types.Submission) (types.Submission, error) {
	f.nextID++
	s.ID = f.nextID
	s.SubmittedAt = time.Now()
	f.rows = append(f.rows, s)
	return s, nil
}

func (f *fakeSubmissionStore) ListByParticipantAndProblem(_ context.Context, participantID, problemID int) ([]types.Submission, error) {
	var out []types.Submission
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].ParticipantID == participantID && f.rows[i].ProblemID == problemID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

// fakeParticipantStore tracks experience grants and solved pairs.
type fakeParticipantStore struct {
	participants map[int]*types.Participant
	solved       map[[2]int]bool
	ledger       []types.ExperienceEntry
}

func newFakeParticipantStore(ids ...int) *fakeParticipantStore {
	f := &fakeParticipantStore{
		participants: make(map[int]*types.Participant),
		solved:       make(map[[2]int]bool),
	}
	for _, id := range ids {
		f.participants[id] = &types.Participant{ID: id}
	}
	return f
}

func (f *fakeParticipantStore) GetByID(_ context.Context, id int) (types.Participant, error) {
	p, ok := f.participants[id]
	if !ok {
		return types.Participant{}, store.ErrNotFound
	}
	return *p, nil
}

func (f *fakeParticipantStore) GetByUsername(_ context.Context, username string) (types.Participant, error) {
	for _, p := range f.participants {
		if p.Username == username {
			return *p, nil
		}
	}
	return types.Participant{}, store.ErrNotFound
}

func (f *fakeParticipantStore) Create(_ context.Context, p types.Participant) (types.Participant, error) {
	p.ID = len(f.participants) + 1
	f.participants[p.ID] = &p
	return p, nil
}

func (f *fakeParticipantStore) RecordFirstSolve(_ context.Context, participantID, problemID int) (bool, error) {
	if _, ok := f.participants[participantID]; !ok {
		return false, store.ErrInvalidReference
	}
	key := [2]int{participantID, problemID}
	if f.solved[key] {
		return false, nil
	}
	f.solved[key] = true
	return true, nil
}

func (f *fakeParticipantStore) GrantExperience(_ context.Context, participantID, delta int) (int, error) {
	p, ok := f.participants[participantID]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.Experience += delta
	f.ledger = append(f.ledger, types.ExperienceEntry{
		ParticipantID: participantID,
		Experience:    p.Experience,
		Date:          time.Now(),
	})
	return p.Experience, nil
}

func (f *fakeParticipantStore) SolvedProblemCount(_ context.Context, participantID int) (int, error) {
	count := 0
	for key := range f.solved {
		if key[0] == participantID {
			count++
		}
	}
	return count, nil
}

func (f *fakeParticipantStore) ExperienceHistory(_ context.Context, participantID int) ([]types.ExperienceEntry, error) {
	var out []types.ExperienceEntry
	for _, e := range f.ledger {
		if e.ParticipantID == participantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeAchievementStore holds a static catalog and grant set. When
// loseGrantRace is set, Grant reports the insert as already done,
// mimicking a concurrent evaluation winning the unique-key race.
type fakeAchievementStore struct {
	catalog       []types.Achievement
	grants        map[[2]int]bool
	loseGrantRace bool
}

func newFakeAchievementStore(catalog ...types.Achievement) *fakeAchievementStore {
	return &fakeAchievementStore{catalog: catalog, grants: make(map[[2]int]bool)}
}

func (f *fakeAchievementStore) List(context.Context) ([]types.Achievement, error) {
	return f.catalog, nil
}

func (f *fakeAchievementStore) ListUngranted(_ context.Context, participantID int) ([]types.Achievement, error) {
	var out []types.Achievement
	for _, a := range f.catalog {
		if !f.grants[[2]int{participantID, a.ID}] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAchievementStore) Grant(_ context.Context, participantID, achievementID int) (bool, error) {
	key := [2]int{participantID, achievementID}
	if f.loseGrantRace || f.grants[key] {
		f.grants[key] = true
		return false, nil
	}
	f.grants[key] = true
	return true, nil
}

func (f *fakeAchievementStore) GrantedTo(_ context.Context, participantID int) ([]types.AchievementGrant, error) {
	var out []types.AchievementGrant
	for key := range f.grants {
		if key[0] == participantID {
			out = append(out, types.AchievementGrant{ParticipantID: key[0], AchievementID: key[1]})
		}
	}
	return out, nil
}

// scriptedEvaluator returns a fixed result sheet.
type scriptedEvaluator struct {
	results []judge.CaseResult
	err     error
}

func (s *scriptedEvaluator) EvaluateTestCases(context.Context, string, string, []types.TestCase) ([]judge.CaseResult, error) {
	return s.results, s.err
}

func (s *scriptedEvaluator) TestAgainstReference(context.Context, types.Problem, string, string, string) (judge.Result, error) {
	if s.err != nil {
		return judge.Result{}, s.err
	}
	return s.results[0].Result, nil
}

func acceptedCase(id int, t float64, mem int64) judge.CaseResult {
	return judge.CaseResult{TestCaseID: id, Result: judge.Result{Verdict: types.VerdictAccepted, Time: t, Memory: mem}}
}

func failedCase(id int, verdict types.Verdict) judge.CaseResult {
	return judge.CaseResult{TestCaseID: id, Result: judge.Result{Verdict: verdict, Time: 99, Memory: 999999}}
}

func newJudgeFixture(results []judge.CaseResult) (*SubmissionService, *fakeProblemStore, *fakeSubmissionStore, *fakeParticipantStore) {
	problems := &fakeProblemStore{
		problem: types.Problem{ID: 1, Name: "Sum", Difficulty: types.DifficultyEasy, CreationDate: time.Now().Add(-time.Hour)},
		cases: []types.TestCase{
			{ID: 1, ProblemID: 1, Input: "1 2", Output: "3"},
			{ID: 2, ProblemID: 1, Input: "5 7", Output: "12"},
		},
	}
	submissions := &fakeSubmissionStore{}
	participants := newFakeParticipantStore(10)
	achievements := NewAchievementService(newFakeAchievementStore(), participants, NopEvents{})
	acceptance := NewAcceptanceCoordinator(participants, achievements)
	svc := NewSubmissionService(&scriptedEvaluator{results: results}, submissions, problems, acceptance, NopEvents{})
	return svc, problems, submissions, participants
}

func TestAggregateResults(t *testing.T) {
	tests := []struct {
		name       string
		results    []judge.CaseResult
		wantStatus types.SubmissionStatus
		wantPassed int
		wantTime   float64
		wantMemory int64
	}{
		{
			name:       "all accepted",
			results:    []judge.CaseResult{acceptedCase(1, 0.2, 512), acceptedCase(2, 0.5, 256)},
			wantStatus: types.SubmissionAccepted,
			wantPassed: 2,
			wantTime:   0.5,
			wantMemory: 512,
		},
		{
			name:       "partial failure keeps passing metrics only",
			results:    []judge.CaseResult{acceptedCase(1, 0.2, 512), failedCase(2, types.VerdictWrongAnswer)},
			wantStatus: types.SubmissionFailed,
			wantPassed: 1,
			wantTime:   0.2,
			wantMemory: 512,
		},
		{
			name:       "no passing cases zeroes metrics",
			results:    []judge.CaseResult{failedCase(1, types.VerdictCompileError), failedCase(2, types.VerdictRuntimeError)},
			wantStatus: types.SubmissionFailed,
			wantPassed: 0,
		},
		{
			name:       "empty result set never accepts",
			results:    nil,
			wantStatus: types.SubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, passed, maxTime, maxMemory := aggregateResults(tt.results)
			if status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status, tt.wantStatus)
			}
			if passed != tt.wantPassed {
				t.Errorf("passed = %d, want %d", passed, tt.wantPassed)
			}
			if maxTime != tt.wantTime {
				t.Errorf("max time = %v, want %v", maxTime, tt.wantTime)
			}
			if maxMemory != tt.wantMemory {
				t.Errorf("max memory = %d, want %d", maxMemory, tt.wantMemory)
			}
		})
	}
}

func TestJudgeAcceptedGrantsExperienceOnce(t *testing.T) {
	results := []judge.CaseResult{acceptedCase(1, 0.1, 100), acceptedCase(2, 0.2, 200)}
	svc, problems, submissions, participants := newJudgeFixture(results)

	req := types.SubmitRequest{ParticipantID: 10, ProblemID: 1, Code: "print(3)", Language: "Python"}

	judged, err := svc.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if judged.Submission.Status != types.SubmissionAccepted {
		t.Fatalf("status = %s", judged.Submission.Status)
	}
	if judged.Submission.TestCasesPassed != 2 {
		t.Fatalf("passed = %d", judged.Submission.TestCasesPassed)
	}
	if got := participants.participants[10].Experience; got != 10 {
		t.Fatalf("experience after first solve = %d, want 10", got)
	}

	// Resubmitting an accepted solution must not grant again.
	if _, err := svc.Judge(context.Background(), req); err != nil {
		t.Fatalf("Judge (resubmit): %v", err)
	}
	if got := participants.participants[10].Experience; got != 10 {
		t.Fatalf("experience after resubmit = %d, want 10", got)
	}
	if len(submissions.rows) != 2 {
		t.Fatalf("submission rows = %d, want 2", len(submissions.rows))
	}
	if problems.total != 2 || problems.successful != 2 {
		t.Fatalf("counters = (%d, %d), want (2, 2)", problems.total, problems.successful)
	}
}

func TestJudgeFailedSubmissionSkipsAcceptance(t *testing.T) {
	results := []judge.CaseResult{acceptedCase(1, 0.1, 100), failedCase(2, types.VerdictWrongAnswer)}
	svc, problems, submissions, participants := newJudgeFixture(results)

	judged, err := svc.Judge(context.Background(), types.SubmitRequest{ParticipantID: 10, ProblemID: 1, Code: "x", Language: "Python"})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if judged.Submission.Status != types.SubmissionFailed {
		t.Fatalf("status = %s", judged.Submission.Status)
	}
	if got := participants.participants[10].Experience; got != 0 {
		t.Fatalf("experience = %d, want 0", got)
	}
	if len(judged.NewAchievements) != 0 {
		t.Fatalf("achievements = %d, want 0", len(judged.NewAchievements))
	}
	if len(submissions.rows) != 1 {
		t.Fatalf("submission rows = %d", len(submissions.rows))
	}
	if problems.total != 1 || problems.successful != 0 {
		t.Fatalf("counters = (%d, %d), want (1, 0)", problems.total, problems.successful)
	}
}

func TestJudgeUnknownProblem(t *testing.T) {
	svc, _, _, _ := newJudgeFixture(nil)
	_, err := svc.Judge(context.Background(), types.SubmitRequest{ParticipantID: 10, ProblemID: 404, Code: "x", Language: "Python"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJudgePropagatesEvaluatorErrors(t *testing.T) {
	problems := &fakeProblemStore{problem: types.Problem{ID: 1}, cases: []types.TestCase{{ID: 1}}}
	participants := newFakeParticipantStore(10)
	achievements := NewAchievementService(newFakeAchievementStore(), participants, NopEvents{})
	acceptance := NewAcceptanceCoordinator(participants, achievements)
	svc := NewSubmissionService(&scriptedEvaluator{err: judge.ErrUnsupportedLanguage}, &fakeSubmissionStore{}, problems, acceptance, NopEvents{})

	_, err := svc.Judge(context.Background(), types.SubmitRequest{ParticipantID: 10, ProblemID: 1, Code: "x", Language: "Malbolge"})
	if !errors.Is(err, judge.ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	results := []judge.CaseResult{acceptedCase(1, 0.1, 100), acceptedCase(2, 0.2, 200)}
	svc, _, _, _ := newJudgeFixture(results)

	req := types.SubmitRequest{ParticipantID: 10, ProblemID: 1, Code: "a", Language: "Python"}
	if _, err := svc.Judge(context.Background(), req); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	req.Code = "b"
	if _, err := svc.Judge(context.Background(), req); err != nil {
		t.Fatalf("Judge: %v", err)
	}

	history, err := svc.History(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Code != "b" || history[1].Code != "a" {
		t.Fatalf("history order = [%s, %s], want [b, a]", history[0].Code, history[1].Code)
	}
}
