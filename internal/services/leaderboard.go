package services

import (
	"context"

	"github.com/codearena/apiserver/types"
)

// LeaderboardStore exposes the ranked-submission queries backing
// leaderboards and grading.
type LeaderboardStore interface {
	Leaderboard(ctx context.Context, problemID int) ([]types.LeaderboardEntry, error)
}

// LeaderboardService serves per-problem rankings.
type LeaderboardService struct {
	problems ProblemStore
	entries  LeaderboardStore
}

func NewLeaderboardService(problems ProblemStore, entries LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{problems: problems, entries: entries}
}

// ForProblem returns the ranking for a problem, one row per
// participant, best submission first.
func (s *LeaderboardService) ForProblem(ctx context.Context, problemID int) ([]types.LeaderboardEntry, error) {
	if _, err := s.problems.Get(ctx, problemID); err != nil {
		return nil, err
	}
	return s.entries.Leaderboard(ctx, problemID)
}
