package services

import (
	"context"

	"github.com/codearena/apiserver/types"
)

// ParticipantService encapsulates account lookups and the experience
// ledger around the participant store.
type ParticipantService struct {
	participants ParticipantStore
}

func NewParticipantService(participants ParticipantStore) *ParticipantService {
	return &ParticipantService{participants: participants}
}

func (s *ParticipantService) GetByID(ctx context.Context, id int) (types.Participant, error) {
	return s.participants.GetByID(ctx, id)
}

func (s *ParticipantService) GetByUsername(ctx context.Context, username string) (types.Participant, error) {
	return s.participants.GetByUsername(ctx, username)
}

func (s *ParticipantService) Create(ctx context.Context, participant types.Participant) (types.Participant, error) {
	return s.participants.Create(ctx, participant)
}

// ExperienceHistory returns the append-only ledger for a participant,
// oldest entry first.
func (s *ParticipantService) ExperienceHistory(ctx context.Context, participantID int) ([]types.ExperienceEntry, error) {
	if _, err := s.participants.GetByID(ctx, participantID); err != nil {
		return nil, err
	}
	return s.participants.ExperienceHistory(ctx, participantID)
}

// SolvedProblemCount reports how many distinct problems the participant
// has solved.
func (s *ParticipantService) SolvedProblemCount(ctx context.Context, participantID int) (int, error) {
	return s.participants.SolvedProblemCount(ctx, participantID)
}
