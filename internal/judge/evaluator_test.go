package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/codearena/apiserver/types"
)

// fakeExecutor scripts results keyed by stdin.
type fakeExecutor struct {
	mu       sync.Mutex
	results  map[string]Result
	err      error
	requests []ExecRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req ExecRequest) (Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return Result{}, f.err
	}
	res, ok := f.results[req.Stdin]
	if !ok {
		return Result{Verdict: types.VerdictAccepted, Output: "ok", ExpectedOutput: derefOr(req.ExpectedOutput)}, nil
	}
	return res, nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestEvaluateTestCasesEmptySet(t *testing.T) {
	ev := NewEvaluator(&fakeExecutor{})
	if _, err := ev.EvaluateTestCases(context.Background(), "code", "Python", nil); !errors.Is(err, ErrNoTestCases) {
		t.Fatalf("err = %v, want ErrNoTestCases", err)
	}
}

func TestEvaluateTestCasesUnsupportedLanguage(t *testing.T) {
	exec := &fakeExecutor{}
	ev := NewEvaluator(exec)
	cases := []types.TestCase{{ID: 1, Input: "1", Output: "1"}}

	if _, err := ev.EvaluateTestCases(context.Background(), "code", "Brainfuck", cases); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
	}
	if len(exec.requests) != 0 {
		t.Fatalf("expected no executions, got %d", len(exec.requests))
	}
}

func TestEvaluateTestCasesPreservesOrder(t *testing.T) {
	const n = 20
	cases := make([]types.TestCase, n)
	results := make(map[string]Result, n)
	for i := range cases {
		stdin := fmt.Sprintf("input-%d", i)
		cases[i] = types.TestCase{ID: i + 1, Input: stdin, Output: fmt.Sprintf("output-%d", i)}
		verdict := types.VerdictAccepted
		if i%3 == 0 {
			verdict = types.VerdictWrongAnswer
		}
		results[stdin] = Result{Verdict: verdict, Output: fmt.Sprintf("got-%d", i)}
	}

	ev := NewEvaluator(&fakeExecutor{results: results})
	got, err := ev.EvaluateTestCases(context.Background(), "code", "Python", cases)
	if err != nil {
		t.Fatalf("EvaluateTestCases: %v", err)
	}
	if len(got) != n {
		t.Fatalf("len(results) = %d, want %d", len(got), n)
	}
	for i, res := range got {
		if res.TestCaseID != i+1 {
			t.Errorf("result %d has test case id %d, want %d", i, res.TestCaseID, i+1)
		}
		want := types.VerdictAccepted
		if i%3 == 0 {
			want = types.VerdictWrongAnswer
		}
		if res.Verdict != want {
			t.Errorf("result %d verdict = %s, want %s", i, res.Verdict, want)
		}
	}
}

func TestEvaluateTestCasesExecutorFaultBecomesVerdict(t *testing.T) {
	ev := NewEvaluator(&fakeExecutor{err: errors.New("executor exploded")})
	cases := []types.TestCase{{ID: 7, Input: "1", Output: "1"}}

	got, err := ev.EvaluateTestCases(context.Background(), "code", "Python", cases)
	if err != nil {
		t.Fatalf("EvaluateTestCases: %v", err)
	}
	if got[0].Verdict != types.VerdictRuntimeError {
		t.Fatalf("verdict = %s, want %s", got[0].Verdict, types.VerdictRuntimeError)
	}
	if !strings.Contains(got[0].ErrorDetails, "executor exploded") {
		t.Fatalf("error details = %q", got[0].ErrorDetails)
	}
	if got[0].ExpectedOutput != "1" {
		t.Fatalf("expected output = %q, want %q", got[0].ExpectedOutput, "1")
	}
}

func TestTestAgainstReference(t *testing.T) {
	problem := types.Problem{
		Solution: "a, b = map(int, input().split())\nprint(a + b)",
		Language: "Python",
	}

	t.Run("no reference solution", func(t *testing.T) {
		ev := NewEvaluator(&fakeExecutor{})
		_, err := ev.TestAgainstReference(context.Background(), types.Problem{}, "code", "1 2", "Python")
		if !errors.Is(err, ErrNoReferenceSolution) {
			t.Fatalf("err = %v, want ErrNoReferenceSolution", err)
		}
	})

	t.Run("unsupported language", func(t *testing.T) {
		ev := NewEvaluator(&fakeExecutor{})
		_, err := ev.TestAgainstReference(context.Background(), problem, "code", "1 2", "Pascal")
		if !errors.Is(err, ErrUnsupportedLanguage) {
			t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
		}
	})

	t.Run("failing reference solution", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]Result{
			"1 2": {Verdict: types.VerdictRuntimeError, ErrorDetails: "NameError"},
		}}
		ev := NewEvaluator(exec)

		_, err := ev.TestAgainstReference(context.Background(), problem, "code", "1 2", "Python")
		var refErr *ReferenceSolutionError
		if !errors.As(err, &refErr) {
			t.Fatalf("err = %v, want *ReferenceSolutionError", err)
		}
		if refErr.Verdict != types.VerdictRuntimeError {
			t.Fatalf("verdict = %s", refErr.Verdict)
		}
		if !strings.Contains(refErr.Error(), "NameError") {
			t.Fatalf("message = %q", refErr.Error())
		}
	})

	t.Run("candidate compared to reference output", func(t *testing.T) {
		exec := &fakeExecutor{results: map[string]Result{
			"5 7": {Verdict: types.VerdictAccepted, Output: "12\n"},
		}}
		ev := NewEvaluator(exec)

		res, err := ev.TestAgainstReference(context.Background(), problem, "print(12)", "5 7", "Python")
		if err != nil {
			t.Fatalf("TestAgainstReference: %v", err)
		}
		if res.Verdict != types.VerdictAccepted {
			t.Fatalf("verdict = %s", res.Verdict)
		}

		// Two executions: the reference run without an expected output,
		// then the candidate compared against the reference's stdout.
		if len(exec.requests) != 2 {
			t.Fatalf("executions = %d, want 2", len(exec.requests))
		}
		if exec.requests[0].ExpectedOutput != nil {
			t.Fatal("reference run must not carry an expected output")
		}
		if exec.requests[1].ExpectedOutput == nil || *exec.requests[1].ExpectedOutput != "12\n" {
			t.Fatalf("candidate expected output = %v", exec.requests[1].ExpectedOutput)
		}
	})
}
