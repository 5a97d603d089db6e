package services

import (
	"context"
	"fmt"

	"github.com/codearena/apiserver/types"
)

// firstSolveExperience is the fixed bonus granted the first time a
// participant gets a problem accepted.
const firstSolveExperience = 10

// ParticipantStore defines persistence operations for participants and
// their experience ledger.
type ParticipantStore interface {
	GetByID(ctx context.Context, id int) (types.Participant, error)
	GetByUsername(ctx context.Context, username string) (types.Participant, error)
	Create(ctx context.Context, participant types.Participant) (types.Participant, error)
	RecordFirstSolve(ctx context.Context, participantID, problemID int) (bool, error)
	GrantExperience(ctx context.Context, participantID, delta int) (int, error)
	SolvedProblemCount(ctx context.Context, participantID int) (int, error)
	ExperienceHistory(ctx context.Context, participantID int) ([]types.ExperienceEntry, error)
}

// AcceptanceCoordinator fires the side effects of a first-ever accepted
// submission on a (participant, problem) pair: record the solve, grant
// the fixed experience bonus, and re-evaluate achievements. A repeat
// acceptance of an already solved pair is a successful no-op.
type AcceptanceCoordinator struct {
	participants ParticipantStore
	achievements *AchievementService
}

func NewAcceptanceCoordinator(participants ParticipantStore, achievements *AchievementService) *AcceptanceCoordinator {
	return &AcceptanceCoordinator{
		participants: participants,
		achievements: achievements,
	}
}

// OnAccepted runs after a submission aggregates to Accepted. The solved
// record insert is the idempotency gate: when the pair already exists
// nothing further happens and no achievements are returned. When the
// insert hits a dangling participant or problem id the whole step fails
// with the store's invalid-reference error and no experience is granted.
func (c *AcceptanceCoordinator) OnAccepted(ctx context.Context, participantID, problemID int) ([]types.Achievement, error) {
	created, err := c.participants.RecordFirstSolve(ctx, participantID, problemID)
	if err != nil {
		return nil, fmt.Errorf("record first solve: %w", err)
	}
	if !created {
		return nil, nil
	}

	if _, err := c.participants.GrantExperience(ctx, participantID, firstSolveExperience); err != nil {
		return nil, fmt.Errorf("grant first-solve experience: %w", err)
	}

	return c.achievements.Evaluate(ctx, participantID)
}
