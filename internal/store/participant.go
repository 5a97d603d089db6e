package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codearena/apiserver/types"
)

// ParticipantRepository handles persistence for participants, the
// first-solve gate and the experience ledger.
type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `
	id, username, email, first_name, last_name, avatar, role,
	password_hash, experience, coins, team_id, created_at`

func scanParticipant(row interface{ Scan(...any) error }) (types.Participant, error) {
	var p types.Participant
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Avatar,
		&p.Role,
		&p.PasswordHash,
		&p.Experience,
		&p.Coins,
		&p.TeamID,
		&p.CreatedAt,
	)
	return p, err
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id int) (types.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = $1`
	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Participant{}, ErrNotFound
		}
		return types.Participant{}, err
	}
	return p, nil
}

func (r *ParticipantRepository) GetByUsername(ctx context.Context, username string) (types.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE username = $1`
	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Participant{}, ErrNotFound
		}
		return types.Participant{}, err
	}
	return p, nil
}

func (r *ParticipantRepository) Create(ctx context.Context, p types.Participant) (types.Participant, error) {
	const query = `
		INSERT INTO participants (username, email, first_name, last_name, avatar, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		p.Username,
		p.Email,
		p.FirstName,
		p.LastName,
		p.Avatar,
		p.Role,
		p.PasswordHash,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Participant{}, ErrDuplicate
		}
		return types.Participant{}, err
	}
	return p, nil
}

// RecordFirstSolve inserts the (participant, problem) solved marker.
// The insert is the idempotency gate itself: a conflict on the primary
// key means the pair was already solved and reports created=false. A
// dangling participant or problem id surfaces as ErrInvalidReference.
func (r *ParticipantRepository) RecordFirstSolve(ctx context.Context, participantID, problemID int) (bool, error) {
	const query = `
		INSERT INTO participant_problems (participant_id, problem_id)
		VALUES ($1, $2)
		ON CONFLICT (participant_id, problem_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, participantID, problemID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrInvalidReference
		}
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GrantExperience atomically adds delta to the participant's experience
// and appends the resulting total to the ledger, in one transaction.
func (r *ParticipantRepository) GrantExperience(ctx context.Context, participantID, delta int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var resulting int
	const update = `UPDATE participants SET experience = experience + $2 WHERE id = $1 RETURNING experience`
	if err := tx.QueryRowContext(ctx, update, participantID, delta).Scan(&resulting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	const ledger = `INSERT INTO xp_history (participant_id, experience, date) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, ledger, participantID, resulting, time.Now()); err != nil {
		return 0, fmt.Errorf("append experience ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return resulting, nil
}

// SolvedProblemCount counts distinct problems the participant has had
// accepted at least once, i.e. their participant_problems rows.
func (r *ParticipantRepository) SolvedProblemCount(ctx context.Context, participantID int) (int, error) {
	const query = `SELECT COUNT(*) FROM participant_problems WHERE participant_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, participantID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ExperienceHistory returns the participant's experience ledger, oldest
// first.
func (r *ParticipantRepository) ExperienceHistory(ctx context.Context, participantID int) ([]types.ExperienceEntry, error) {
	const query = `
		SELECT id, participant_id, experience, date
		FROM xp_history
		WHERE participant_id = $1
		ORDER BY date ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.ExperienceEntry{}
	for rows.Next() {
		var e types.ExperienceEntry
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.Experience, &e.Date); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
