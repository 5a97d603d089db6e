package types

import "time"

// Participant is an account taking part in coding practice. Experience
// and coins are mutated only through atomic balance updates in the store,
// never read-modify-write in process memory.
type Participant struct {
	// ID is the unique identifier of the participant.
	ID int `json:"id" db:"id"`

	// Username is the unique login name.
	Username string `json:"username" db:"username"`

	// Email is the participant's email address.
	Email string `json:"email" db:"email"`

	// FirstName and LastName are display names used on leaderboards.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Avatar is the profile picture URL shown on leaderboards.
	Avatar string `json:"avatar" db:"avatar"`

	// Role is the authorization level ("admin" or "participant").
	Role string `json:"role" db:"role"`

	// PasswordHash is the bcrypt hash of the participant's password.
	// Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Experience is the participant's accumulated experience points.
	Experience int `json:"experience" db:"experience"`

	// Coins is the participant's currency balance.
	Coins int `json:"coins" db:"coins"`

	// TeamID is the participant's current team, nil when unaffiliated.
	TeamID *int `json:"team_id,omitempty" db:"team_id"`

	// CreatedAt is the timestamp the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Team is an optional grouping of participants. Rewards earned by a
// team-context submission are split equally across the members of a
// live (non-terminated) team.
type Team struct {
	ID              int        `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	TerminationDate *time.Time `json:"termination_date,omitempty" db:"termination_date"`
}

// Terminated reports whether the team has been wound down. Rewards for
// a terminated team fall back to the individual winner.
func (t Team) Terminated() bool {
	return t.TerminationDate != nil
}

// ExperienceEntry is one row of the append-only experience ledger.
// Experience records the resulting total after the change, so the
// history is re-derivable for back-dated ranking and audits.
type ExperienceEntry struct {
	ID            int64     `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Experience    int       `json:"experience" db:"experience"`
	Date          time.Time `json:"date" db:"date"`
}
