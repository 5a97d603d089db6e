package store

import (
	"context"
	"database/sql"

	"github.com/codearena/apiserver/types"
)

// AchievementRepository handles the achievement catalog and grants.
type AchievementRepository struct {
	db *sql.DB
}

func NewAchievementRepository(db *sql.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) List(ctx context.Context) ([]types.Achievement, error) {
	const query = `SELECT id, name, description, criterion_type, threshold FROM achievements ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	achievements := []types.Achievement{}
	for rows.Next() {
		var a types.Achievement
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Criterion, &a.Threshold); err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// ListUngranted returns catalog entries the participant has not earned
// yet; grant absence is the signal an achievement is still available.
func (r *AchievementRepository) ListUngranted(ctx context.Context, participantID int) ([]types.Achievement, error) {
	const query = `
		SELECT a.id, a.name, a.description, a.criterion_type, a.threshold
		FROM achievements a
		WHERE NOT EXISTS (
			SELECT 1 FROM participant_achievements pa
			WHERE pa.participant_id = $1 AND pa.achievement_id = a.id
		)
		ORDER BY a.id`
	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	achievements := []types.Achievement{}
	for rows.Next() {
		var a types.Achievement
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Criterion, &a.Threshold); err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// Grant awards the achievement to the participant. The insert races
// safely: on conflict with an existing grant it reports granted=false
// instead of erroring, so concurrent evaluations of the same participant
// converge on exactly one grant.
func (r *AchievementRepository) Grant(ctx context.Context, participantID, achievementID int) (bool, error) {
	const query = `
		INSERT INTO participant_achievements (participant_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (participant_id, achievement_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, participantID, achievementID)
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

// GrantedTo lists the achievements a participant has earned with the
// grant timestamps.
func (r *AchievementRepository) GrantedTo(ctx context.Context, participantID int) ([]types.AchievementGrant, error) {
	const query = `
		SELECT participant_id, achievement_id, awarded_at
		FROM participant_achievements
		WHERE participant_id = $1
		ORDER BY awarded_at ASC`
	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []types.AchievementGrant{}
	for rows.Next() {
		var g types.AchievementGrant
		if err := rows.Scan(&g.ParticipantID, &g.AchievementID, &g.AwardedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
