package types

import "time"

// CriterionType selects the metric an achievement threshold is checked
// against. Unknown criterion types are inert: they never grant and never
// error, leaving room for future criteria in the catalog.
type CriterionType string

const (
	CriterionProblemsSolved CriterionType = "problems_solved"
	CriterionExperience     CriterionType = "experience"
)

// Achievement is a static catalog entry: a badge granted once a
// participant's metric crosses the threshold.
type Achievement struct {
	ID          int           `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Criterion   CriterionType `json:"criterion_type" db:"criterion_type"`
	Threshold   int           `json:"threshold" db:"threshold"`
}

// AchievementGrant marks that a participant earned an achievement.
// At most one grant exists per (participant, achievement) pair; the
// store enforces this with a uniqueness constraint so concurrent
// evaluation races collapse into a no-op instead of a duplicate.
type AchievementGrant struct {
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	AchievementID int       `json:"achievement_id" db:"achievement_id"`
	AwardedAt     time.Time `json:"awarded_at" db:"awarded_at"`
}
