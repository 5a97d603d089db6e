package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/codearena/apiserver/types"
)

// SubmissionRepository handles persistence for submissions. The table is
// append-only: there is no update path, resubmission always inserts.
type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, submission types.Submission) (types.Submission, error) {
	const query = `
		INSERT INTO submissions (
			participant_id, problem_id, status, code, language,
			execution_time, memory, in_team, test_cases_passed, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	submission.SubmittedAt = time.Now()
	err := r.db.QueryRowContext(
		ctx,
		query,
		submission.ParticipantID,
		submission.ProblemID,
		submission.Status,
		submission.Code,
		submission.Language,
		submission.ExecutionTime,
		submission.Memory,
		submission.InTeam,
		submission.TestCasesPassed,
		submission.SubmittedAt,
	).Scan(&submission.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Submission{}, ErrInvalidReference
		}
		return types.Submission{}, err
	}
	return submission, nil
}

// ListByParticipantAndProblem returns a participant's attempts on one
// problem, newest first.
func (r *SubmissionRepository) ListByParticipantAndProblem(ctx context.Context, participantID, problemID int) ([]types.Submission, error) {
	const query = `
		SELECT id, participant_id, problem_id, status, code, language,
		       execution_time, memory, in_team, test_cases_passed, submitted_at
		FROM submissions
		WHERE participant_id = $1 AND problem_id = $2
		ORDER BY submitted_at DESC`
	rows, err := r.db.QueryContext(ctx, query, participantID, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// Leaderboard selects every participant's single best submission on the
// problem, ranked by pass count descending, execution time ascending and
// submission time ascending. The window function picks the best row per
// participant; the outer ordering reuses the same comparator.
func (r *SubmissionRepository) Leaderboard(ctx context.Context, problemID int) ([]types.LeaderboardEntry, error) {
	const query = `
		SELECT participant_id, first_name, last_name, avatar, test_cases_passed, execution_time
		FROM (
			SELECT s.participant_id, p.first_name, p.last_name, p.avatar,
			       s.test_cases_passed, s.execution_time, s.submitted_at, s.id,
			       ROW_NUMBER() OVER (
			           PARTITION BY s.participant_id
			           ORDER BY s.test_cases_passed DESC, s.execution_time ASC, s.submitted_at ASC, s.id ASC
			       ) AS rank
			FROM submissions s
			JOIN participants p ON s.participant_id = p.id
			WHERE s.problem_id = $1
		) best
		WHERE rank = 1
		ORDER BY test_cases_passed DESC, execution_time ASC, submitted_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.LeaderboardEntry{}
	for rows.Next() {
		var e types.LeaderboardEntry
		if err := rows.Scan(&e.ParticipantID, &e.FirstName, &e.LastName, &e.Avatar, &e.TestCasesPassed, &e.Time); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TopRanked returns the best submission per participant, restricted to
// submissions made no earlier than since, ordered by the ranking
// comparator and limited to the top few winners for grading.
func (r *SubmissionRepository) TopRanked(ctx context.Context, problemID int, since time.Time, limit int) ([]types.Submission, error) {
	const query = `
		SELECT id, participant_id, problem_id, status, code, language,
		       execution_time, memory, in_team, test_cases_passed, submitted_at
		FROM (
			SELECT s.*,
			       ROW_NUMBER() OVER (
			           PARTITION BY s.participant_id
			           ORDER BY s.test_cases_passed DESC, s.execution_time ASC, s.submitted_at ASC, s.id ASC
			       ) AS rank
			FROM submissions s
			WHERE s.problem_id = $1 AND s.submitted_at >= $2
		) best
		WHERE rank = 1
		ORDER BY test_cases_passed DESC, execution_time ASC, submitted_at ASC, id ASC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, problemID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]types.Submission, error) {
	var submissions []types.Submission
	for rows.Next() {
		var s types.Submission
		if err := rows.Scan(
			&s.ID,
			&s.ParticipantID,
			&s.ProblemID,
			&s.Status,
			&s.Code,
			&s.Language,
			&s.ExecutionTime,
			&s.Memory,
			&s.InTeam,
			&s.TestCasesPassed,
			&s.SubmittedAt,
		); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}
