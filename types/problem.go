package types

import (
	"strings"
	"time"
)

// Difficulty is the tier a problem is graded under. It selects the
// reward ladder applied by the problem grader.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Normalize folds free-form difficulty text onto the known tiers.
// Anything unrecognized (including empty) is treated as Easy for
// reward purposes, matching the grader's fallback ladder.
func (d Difficulty) Normalize() Difficulty {
	switch strings.ToLower(string(d)) {
	case "hard":
		return DifficultyHard
	case "medium":
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// Problem is a coding problem in the practice catalog.
type Problem struct {
	// ID is the unique identifier of the problem.
	ID int `json:"id" db:"id"`

	// Name is the human-readable title of the problem.
	Name string `json:"name" db:"name"`

	// Description contains the full problem statement.
	Description string `json:"description" db:"description"`

	// InputFormat and OutputFormat describe the expected I/O shape.
	InputFormat  string `json:"input_format" db:"input_format"`
	OutputFormat string `json:"output_format" db:"output_format"`

	// SampleInput and SampleOutput are the public example pair shown
	// alongside the statement.
	SampleInput  string `json:"sample_input" db:"sample_input"`
	SampleOutput string `json:"sample_output" db:"sample_output"`

	// Difficulty is the reward tier (Easy, Medium or Hard).
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`

	// Solution is the reference solution source code. It is executed
	// live during ad hoc testing to produce the true expected output.
	Solution string `json:"-" db:"solution"`

	// Language is the language the reference solution is written in.
	Language string `json:"language" db:"language"`

	// CreationDate and ExpirationDate bound the problem's active window.
	// Grading only considers submissions made no earlier than CreationDate.
	CreationDate   time.Time `json:"creation_date" db:"creation_date"`
	ExpirationDate time.Time `json:"expiration_date" db:"expiration_date"`

	// Graded is set once the problem grader has distributed rewards.
	// A graded problem is never graded again.
	Graded bool `json:"graded" db:"graded"`

	// TotalSubmissions and SuccessfulSubmissions are running counters
	// incremented atomically as submissions are judged.
	TotalSubmissions      int `json:"total_submissions" db:"total_submissions"`
	SuccessfulSubmissions int `json:"successful_submissions" db:"successful_submissions"`

	// BundleObjectKey and BundleSHA256 reference the archived test-case
	// bundle in object storage, when the problem was created from one.
	BundleObjectKey string `json:"-" db:"bundle_object_key"`
	BundleSHA256    string `json:"-" db:"bundle_sha256"`
}

// AcceptanceRate is the share of judged submissions that were accepted,
// zero when the problem has no submissions yet.
func (p Problem) AcceptanceRate() float64 {
	if p.TotalSubmissions == 0 {
		return 0
	}
	return float64(p.SuccessfulSubmissions) / float64(p.TotalSubmissions)
}

// TestCase is a single input/expected-output pair belonging to exactly
// one problem. Test cases are immutable once used for judging.
type TestCase struct {
	ID        int    `json:"id" db:"id"`
	ProblemID int    `json:"problem_id" db:"problem_id"`
	Input     string `json:"input" db:"input"`
	Output    string `json:"output" db:"output"`
}
