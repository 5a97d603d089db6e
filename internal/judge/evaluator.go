package judge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codearena/apiserver/types"
)

// ErrNoTestCases is returned when a problem has no test cases to judge
// against. An empty set is a data problem, not a vacuous accept.
var ErrNoTestCases = errors.New("problem has no test cases")

// ErrNoReferenceSolution is returned by ad hoc testing when the problem
// carries no reference solution to compute the expected output from.
var ErrNoReferenceSolution = errors.New("problem has no reference solution")

// ReferenceSolutionError reports that the problem's own reference
// solution failed when executed. It signals a bug in the problem's
// content, distinct from any failure of the candidate code.
type ReferenceSolutionError struct {
	Verdict types.Verdict
	Detail  string
}

func (e *ReferenceSolutionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("reference solution failed with status %s", e.Verdict)
	}
	return fmt.Sprintf("reference solution failed with status %s: %s", e.Verdict, e.Detail)
}

// CaseResult is one test case's execution result tagged with the
// originating test case id.
type CaseResult struct {
	TestCaseID int `json:"id"`
	Result
}

// Evaluator runs candidate code against a problem's test cases through
// an Executor.
type Evaluator struct {
	exec Executor
}

func NewEvaluator(exec Executor) *Evaluator {
	return &Evaluator{exec: exec}
}

// EvaluateTestCases runs the code against every test case concurrently
// and returns one result per case, in test-case order. The external
// service is the bottleneck, so every case is dispatched at once and the
// call waits on the full set; a failure on one case neither cancels nor
// short-circuits its siblings.
func (e *Evaluator) EvaluateTestCases(ctx context.Context, code, language string, cases []types.TestCase) ([]CaseResult, error) {
	if len(cases) == 0 {
		return nil, ErrNoTestCases
	}
	if !SupportedLanguage(language) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	results := make([]CaseResult, len(cases))
	var wg sync.WaitGroup
	for i, tc := range cases {
		wg.Add(1)
		go func(i int, tc types.TestCase) {
			defer wg.Done()
			expected := tc.Output
			res, err := e.exec.Execute(ctx, ExecRequest{
				Code:           code,
				Stdin:          tc.Input,
				Language:       language,
				ExpectedOutput: &expected,
			})
			if err != nil {
				// Language support was checked up front, so this is an
				// executor-internal fault; capture it as a verdict.
				res = Result{
					Verdict:        types.VerdictRuntimeError,
					ExpectedOutput: expected,
					ErrorDetails:   err.Error(),
				}
			}
			results[i] = CaseResult{TestCaseID: tc.ID, Result: res}
		}(i, tc)
	}
	wg.Wait()

	return results, nil
}

// TestAgainstReference implements ad hoc code testing: it runs the
// problem's reference solution once on the given input to obtain the
// true expected output, then evaluates the candidate code against that
// output. Nothing is recorded. A failing reference solution aborts with
// *ReferenceSolutionError.
func (e *Evaluator) TestAgainstReference(ctx context.Context, problem types.Problem, code, input, language string) (Result, error) {
	if problem.Solution == "" {
		return Result{}, ErrNoReferenceSolution
	}
	if !SupportedLanguage(language) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	ref, err := e.exec.Execute(ctx, ExecRequest{
		Code:     problem.Solution,
		Stdin:    input,
		Language: problem.Language,
	})
	if err != nil {
		return Result{}, err
	}
	if ref.Verdict != types.VerdictAccepted {
		return Result{}, &ReferenceSolutionError{Verdict: ref.Verdict, Detail: ref.ErrorDetails}
	}

	expected := ref.Output
	return e.exec.Execute(ctx, ExecRequest{
		Code:           code,
		Stdin:          input,
		Language:       language,
		ExpectedOutput: &expected,
	})
}
