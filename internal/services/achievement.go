package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

// AchievementStore defines persistence operations for the achievement
// catalog and grants.
type AchievementStore interface {
	List(ctx context.Context) ([]types.Achievement, error)
	ListUngranted(ctx context.Context, participantID int) ([]types.Achievement, error)
	Grant(ctx context.Context, participantID, achievementID int) (bool, error)
	GrantedTo(ctx context.Context, participantID int) ([]types.AchievementGrant, error)
}

// AchievementService evaluates threshold achievements for participants.
type AchievementService struct {
	achievements AchievementStore
	participants ParticipantStore
	events       Events
}

func NewAchievementService(achievements AchievementStore, participants ParticipantStore, events Events) *AchievementService {
	if events == nil {
		events = NopEvents{}
	}
	return &AchievementService{
		achievements: achievements,
		participants: participants,
		events:       events,
	}
}

// Evaluate computes the participant's qualifying metrics and grants
// every not-yet-earned achievement whose threshold is met. An empty
// result is the common case, not an error; running Evaluate twice with
// no state change in between grants nothing the second time. Grants are
// race-safe: a concurrent evaluation that wins the insert simply drops
// the achievement from this pass's result.
func (s *AchievementService) Evaluate(ctx context.Context, participantID int) ([]types.Achievement, error) {
	participant, err := s.participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}

	solved, err := s.participants.SolvedProblemCount(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("count solved problems: %w", err)
	}

	pending, err := s.achievements.ListUngranted(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list ungranted achievements: %w", err)
	}

	var granted []types.Achievement
	for _, achievement := range pending {
		var met bool
		switch achievement.Criterion {
		case types.CriterionProblemsSolved:
			met = solved >= achievement.Threshold
		case types.CriterionExperience:
			met = participant.Experience >= achievement.Threshold
		default:
			// Unknown criterion types are reserved for future catalog
			// entries; they never grant and never error.
			continue
		}
		if !met {
			continue
		}

		created, err := s.achievements.Grant(ctx, participantID, achievement.ID)
		if err != nil {
			return nil, fmt.Errorf("grant achievement %d: %w", achievement.ID, err)
		}
		if created {
			granted = append(granted, achievement)
			s.events.AchievementGranted(ctx, participantID, achievement)
		}
	}
	return granted, nil
}

// Catalog lists every achievement in the catalog.
func (s *AchievementService) Catalog(ctx context.Context) ([]types.Achievement, error) {
	return s.achievements.List(ctx)
}

// GrantedTo lists the achievements a participant has earned.
func (s *AchievementService) GrantedTo(ctx context.Context, participantID int) ([]types.AchievementGrant, error) {
	return s.achievements.GrantedTo(ctx, participantID)
}
