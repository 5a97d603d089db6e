package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/codearena/apiserver/internal/storage"
	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

// ProblemStore defines persistence operations for problems and their
// test cases.
type ProblemStore interface {
	Get(ctx context.Context, id int) (types.Problem, error)
	List(ctx context.Context, offset, limit int) ([]types.Problem, int, error)
	Create(ctx context.Context, problem types.Problem, cases []types.TestCase) (types.Problem, error)
	TestCases(ctx context.Context, problemID int) ([]types.TestCase, error)
	IncrementSubmissionCounters(ctx context.Context, problemID int, accepted bool) error
}

// ProblemService encapsulates problem catalog use-cases.
type ProblemService struct {
	problems ProblemStore
	storage  *storage.Storage
}

// NewProblemService constructs the service. storage may be nil, in which
// case uploaded bundles are parsed but not archived.
func NewProblemService(problems ProblemStore, storage *storage.Storage) *ProblemService {
	return &ProblemService{problems: problems, storage: storage}
}

func (s *ProblemService) List(ctx context.Context, offset, limit int) ([]types.Problem, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.problems.List(ctx, offset, limit)
}

func (s *ProblemService) Get(ctx context.Context, id int) (types.Problem, error) {
	return s.problems.Get(ctx, id)
}

func (s *ProblemService) TestCases(ctx context.Context, problemID int) ([]types.TestCase, error) {
	if _, err := s.problems.Get(ctx, problemID); err != nil {
		return nil, err
	}
	return s.problems.TestCases(ctx, problemID)
}

// Create stores a problem with its test cases. Inline cases and a
// bundle archive can be combined; the bundle's cases are appended after
// the inline ones. When object storage is configured, the raw archive
// is retained under its content hash for audit.
func (s *ProblemService) Create(ctx context.Context, problem types.Problem, inline []types.TestCase, bundle *BundleFile) (types.Problem, error) {
	problem.Difficulty = problem.Difficulty.Normalize()

	cases := inline
	archived := false
	if bundle != nil {
		parsed, err := ParseTestcaseBundle(bundle.Filename, bundle.Data)
		if err != nil {
			return types.Problem{}, fmt.Errorf("parse testcase bundle: %w", err)
		}
		cases = append(cases, parsed.Cases...)
		problem.BundleObjectKey = parsed.ObjectKey
		problem.BundleSHA256 = parsed.SHA256

		if s.storage != nil {
			reader := bytes.NewReader(bundle.Data)
			stored, err := s.storage.ArchiveBundle(ctx, parsed.ObjectKey, reader, int64(len(bundle.Data)))
			if err != nil {
				// The parsed cases are already in hand; losing the
				// archive copy is recoverable, losing the problem is not.
				log.Printf("archive testcase bundle %s: %v", parsed.ObjectKey, err)
				problem.BundleObjectKey = ""
				problem.BundleSHA256 = ""
			}
			archived = stored
		}
	}

	created, err := s.problems.Create(ctx, problem, cases)
	if err != nil {
		if archived {
			// Only remove objects this call uploaded: the key is
			// content addressed and may back an earlier problem.
			if derr := s.storage.DeleteBundle(ctx, problem.BundleObjectKey); derr != nil {
				log.Printf("delete orphaned bundle %s: %v", problem.BundleObjectKey, derr)
			}
		}
		return types.Problem{}, err
	}
	return created, nil
}

// Bundle opens the archived test-case bundle of a problem. It returns
// store.ErrNotFound when the problem has no archived bundle or no
// object storage is configured.
func (s *ProblemService) Bundle(ctx context.Context, problemID int) (io.ReadCloser, string, error) {
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return nil, "", err
	}
	if s.storage == nil || problem.BundleObjectKey == "" {
		return nil, "", store.ErrNotFound
	}
	rc, err := s.storage.OpenBundle(ctx, problem.BundleObjectKey)
	if err != nil {
		return nil, "", err
	}
	return rc, problem.BundleObjectKey, nil
}
