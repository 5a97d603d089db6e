package types

import "time"

// SubmissionStatus is the overall outcome of judging one submission.
// A submission is Accepted only when every test case verdict is Accepted.
type SubmissionStatus string

const (
	SubmissionAccepted SubmissionStatus = "Accepted"
	SubmissionFailed   SubmissionStatus = "Failed"
)

// Submission is one judged attempt by a participant on a problem.
// Rows are append-only: resubmitting always creates a new row and never
// mutates a prior one, so the submission table stays a faithful audit
// trail for ranking and grading.
type Submission struct {
	// ID is the unique identifier of the submission.
	ID int64 `json:"id" db:"id"`

	// ParticipantID identifies the participant who submitted.
	ParticipantID int `json:"participant_id" db:"participant_id"`

	// ProblemID identifies the problem this submission is for.
	ProblemID int `json:"problem_id" db:"problem_id"`

	// Status is the aggregate outcome over all test cases.
	Status SubmissionStatus `json:"status" db:"status"`

	// Code is the source code as submitted.
	Code string `json:"code" db:"code"`

	// Language names the programming language used. It is one of the
	// judge's fixed supported set.
	Language string `json:"language" db:"language"`

	// ExecutionTime is the maximum execution time in seconds observed
	// among the passing test cases, zero when none passed.
	ExecutionTime float64 `json:"execution_time" db:"execution_time"`

	// Memory is the maximum memory in kilobytes observed among the
	// passing test cases, zero when none passed.
	Memory int64 `json:"memory" db:"memory"`

	// InTeam flags a team-context submission: a reward earned by it is
	// split across the participant's current team at grading time.
	InTeam bool `json:"in_team" db:"in_team"`

	// TestCasesPassed is the number of test cases with an Accepted verdict.
	TestCasesPassed int `json:"test_cases_passed" db:"test_cases_passed"`

	// SubmittedAt is the timestamp the submission was judged and stored.
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// SubmitRequest is the submit-for-grading payload.
type SubmitRequest struct {
	ParticipantID int    `json:"participant_id"`
	ProblemID     int    `json:"problem_id"`
	Code          string `json:"code"`
	Language      string `json:"language"`
	InTeam        bool   `json:"in_team"`
}
