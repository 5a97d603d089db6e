package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codearena/apiserver/types"
)

// GradingStore runs the reward pass of problem grading inside a single
// transaction. Either every credit, ledger row and the graded flag
// commit together, or none of them do; partial reward distribution is
// never observable.
type GradingStore struct {
	db *sql.DB
}

func NewGradingStore(db *sql.DB) *GradingStore {
	return &GradingStore{db: db}
}

// Begin opens the grading transaction.
func (s *GradingStore) Begin(ctx context.Context) (*RewardTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &RewardTx{tx: tx}, nil
}

// RewardTx is one in-flight grading transaction.
type RewardTx struct {
	tx *sql.Tx
}

// LockParticipant loads a participant with a row lock, serializing
// concurrent mutation of the same balance against other graders and the
// acceptance coordinator.
func (t *RewardTx) LockParticipant(ctx context.Context, id int) (types.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1 FOR UPDATE`
	p, err := scanParticipant(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Participant{}, ErrNotFound
		}
		return types.Participant{}, err
	}
	return p, nil
}

// Credit adds the amount to both the participant's coins and experience
// and appends the resulting experience total to the ledger.
func (t *RewardTx) Credit(ctx context.Context, participantID, amount int) (int, error) {
	var resulting int
	const update = `
		UPDATE participants
		SET coins = coins + $2, experience = experience + $2
		WHERE id = $1
		RETURNING experience`
	if err := t.tx.QueryRowContext(ctx, update, participantID, amount).Scan(&resulting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("credit participant %d: %w", participantID, err)
	}

	const ledger = `INSERT INTO xp_history (participant_id, experience, date) VALUES ($1, $2, $3)`
	if _, err := t.tx.ExecContext(ctx, ledger, participantID, resulting, time.Now()); err != nil {
		return 0, fmt.Errorf("append experience ledger: %w", err)
	}
	return resulting, nil
}

// Team loads the participant's current team, ErrNotFound when the
// participant has none or the team row is gone.
func (t *RewardTx) Team(ctx context.Context, participantID int) (types.Team, error) {
	const query = `
		SELECT tm.id, tm.name, tm.termination_date
		FROM participants p
		JOIN teams tm ON p.team_id = tm.id
		WHERE p.id = $1`
	var team types.Team
	err := t.tx.QueryRowContext(ctx, query, participantID).Scan(&team.ID, &team.Name, &team.TerminationDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Team{}, ErrNotFound
		}
		return types.Team{}, err
	}
	return team, nil
}

// TeamMembers lists the team's current members with row locks, in a
// stable order so concurrent graders lock in the same sequence.
func (t *RewardTx) TeamMembers(ctx context.Context, teamID int) ([]types.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE team_id = $1 ORDER BY id FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []types.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, p)
	}
	return members, rows.Err()
}

// MarkGraded flips the problem's graded flag. The WHERE clause doubles
// as the one-shot guard: losing a grading race surfaces as
// ErrAlreadyGraded and rolls the whole transaction back.
func (t *RewardTx) MarkGraded(ctx context.Context, problemID int) error {
	const query = `UPDATE problems SET graded = TRUE WHERE id = $1 AND graded = FALSE`
	result, err := t.tx.ExecContext(ctx, query, problemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyGraded
	}
	return nil
}

func (t *RewardTx) Commit() error {
	return t.tx.Commit()
}

func (t *RewardTx) Rollback() error {
	return t.tx.Rollback()
}
