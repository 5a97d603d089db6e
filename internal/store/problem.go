package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codearena/apiserver/types"
)

// ProblemRepository handles persistence for problems and their test cases.
type ProblemRepository struct {
	db *sql.DB
}

func NewProblemRepository(db *sql.DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

const problemColumns = `
	id, name, description, input_format, output_format, sample_input,
	sample_output, difficulty, solution, language, creation_date,
	COALESCE(expiration_date, 'epoch'::timestamptz), graded,
	total_submissions, successful_submissions, bundle_object_key, bundle_sha256`

func scanProblem(row interface{ Scan(...any) error }) (types.Problem, error) {
	var p types.Problem
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.InputFormat,
		&p.OutputFormat,
		&p.SampleInput,
		&p.SampleOutput,
		&p.Difficulty,
		&p.Solution,
		&p.Language,
		&p.CreationDate,
		&p.ExpirationDate,
		&p.Graded,
		&p.TotalSubmissions,
		&p.SuccessfulSubmissions,
		&p.BundleObjectKey,
		&p.BundleSHA256,
	)
	return p, err
}

func (r *ProblemRepository) Get(ctx context.Context, id int) (types.Problem, error) {
	query := `SELECT` + problemColumns + ` FROM problems WHERE id = $1`
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Problem{}, ErrNotFound
		}
		return types.Problem{}, err
	}
	return p, nil
}

func (r *ProblemRepository) List(ctx context.Context, offset, limit int) ([]types.Problem, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + problemColumns + ` FROM problems ORDER BY creation_date DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	problems := []types.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return problems, total, nil
}

// Create stores a problem together with its test cases in one
// transaction, so a problem is never visible without its cases.
func (r *ProblemRepository) Create(ctx context.Context, problem types.Problem, cases []types.TestCase) (types.Problem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Problem{}, err
	}
	defer tx.Rollback()

	const insertProblem = `
		INSERT INTO problems (
			name, description, input_format, output_format, sample_input,
			sample_output, difficulty, solution, language, creation_date,
			expiration_date, bundle_object_key, bundle_sha256
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, 'epoch'::timestamptz), $12, $13)
		RETURNING id, creation_date`
	if err := tx.QueryRowContext(
		ctx,
		insertProblem,
		problem.Name,
		problem.Description,
		problem.InputFormat,
		problem.OutputFormat,
		problem.SampleInput,
		problem.SampleOutput,
		problem.Difficulty,
		problem.Solution,
		problem.Language,
		problem.CreationDate,
		problem.ExpirationDate,
		problem.BundleObjectKey,
		problem.BundleSHA256,
	).Scan(&problem.ID, &problem.CreationDate); err != nil {
		return types.Problem{}, fmt.Errorf("insert problem: %w", err)
	}

	const insertCase = `INSERT INTO testcases (problem_id, input, output) VALUES ($1, $2, $3) RETURNING id`
	for i := range cases {
		cases[i].ProblemID = problem.ID
		if err := tx.QueryRowContext(ctx, insertCase, problem.ID, cases[i].Input, cases[i].Output).Scan(&cases[i].ID); err != nil {
			return types.Problem{}, fmt.Errorf("insert testcase: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Problem{}, err
	}
	return problem, nil
}

func (r *ProblemRepository) TestCases(ctx context.Context, problemID int) ([]types.TestCase, error) {
	const query = `SELECT id, problem_id, input, output FROM testcases WHERE problem_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []types.TestCase
	for rows.Next() {
		var tc types.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.Output); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// IncrementSubmissionCounters bumps the problem's running counters with
// a single atomic update; concurrent submission traffic never loses an
// increment to read-modify-write races.
func (r *ProblemRepository) IncrementSubmissionCounters(ctx context.Context, problemID int, accepted bool) error {
	const query = `
		UPDATE problems
		SET total_submissions = total_submissions + 1,
			successful_submissions = successful_submissions + CASE WHEN $2 THEN 1 ELSE 0 END
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, problemID, accepted)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
