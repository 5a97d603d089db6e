package types

// LeaderboardEntry is one ranked row of a problem leaderboard: the
// participant's best submission annotated with display fields.
type LeaderboardEntry struct {
	ParticipantID   int     `json:"participant_id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Avatar          string  `json:"avatar"`
	TestCasesPassed int     `json:"test_cases_passed"`
	Time            float64 `json:"time"`
}

// Placement names one rewarded winner of a graded problem.
type Placement struct {
	ParticipantID int `json:"participant_id"`
	Reward        int `json:"reward"`
}

// GradingResult reports the outcome of grading a problem: up to three
// placements and a human-readable summary.
type GradingResult struct {
	Message string     `json:"message"`
	First   *Placement `json:"first_place,omitempty"`
	Second  *Placement `json:"second_place,omitempty"`
	Third   *Placement `json:"third_place,omitempty"`
}
