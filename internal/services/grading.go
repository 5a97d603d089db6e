package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codearena/apiserver/internal/store"
	"github.com/codearena/apiserver/types"
)

// rewardLadders maps a difficulty tier to the coin prizes for first,
// second and third place.
var rewardLadders = map[types.Difficulty][3]int{
	types.DifficultyHard:   {1000, 800, 600},
	types.DifficultyMedium: {800, 600, 400},
	types.DifficultyEasy:   {600, 400, 200},
}

// RewardTx is one in-flight grading transaction. All reward mutations
// of a grading pass go through a single RewardTx and commit atomically.
type RewardTx interface {
	LockParticipant(ctx context.Context, id int) (types.Participant, error)
	Credit(ctx context.Context, participantID, amount int) (int, error)
	Team(ctx context.Context, participantID int) (types.Team, error)
	TeamMembers(ctx context.Context, teamID int) ([]types.Participant, error)
	MarkGraded(ctx context.Context, problemID int) error
	Commit() error
	Rollback() error
}

// TxBeginner opens a new reward transaction.
type TxBeginner func(ctx context.Context) (RewardTx, error)

// RankedStore selects grading candidates: each participant's best
// submission on a problem within a time window.
type RankedStore interface {
	TopRanked(ctx context.Context, problemID int, since time.Time, limit int) ([]types.Submission, error)
}

// GradingService distributes end-of-problem rewards. Grading is a
// one-shot operation per problem: the graded flag is flipped inside the
// same transaction as the credits, so a problem can never pay out twice.
type GradingService struct {
	problems ProblemStore
	ranked   RankedStore
	begin    TxBeginner
	events   Events
}

func NewGradingService(problems ProblemStore, ranked RankedStore, begin TxBeginner, events Events) *GradingService {
	return &GradingService{problems: problems, ranked: ranked, begin: begin, events: events}
}

// Grade ranks the problem's submissions, credits up to three winners
// and marks the problem graded, all in one transaction. A submission
// made in team context splits its prize equally across the members of
// the winner's live team; a missing, terminated or empty team falls
// back to crediting the winner alone.
func (s *GradingService) Grade(ctx context.Context, problemID int) (types.GradingResult, error) {
	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return types.GradingResult{}, err
	}
	if problem.Graded {
		return types.GradingResult{}, store.ErrAlreadyGraded
	}

	winners, err := s.ranked.TopRanked(ctx, problemID, problem.CreationDate, 3)
	if err != nil {
		return types.GradingResult{}, fmt.Errorf("rank submissions: %w", err)
	}

	ladder, ok := rewardLadders[problem.Difficulty.Normalize()]
	if !ok {
		ladder = rewardLadders[types.DifficultyEasy]
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return types.GradingResult{}, fmt.Errorf("begin grading: %w", err)
	}
	defer tx.Rollback()

	placements := make([]*types.Placement, 0, len(winners))
	for i, winner := range winners {
		placement, err := s.reward(ctx, tx, winner, ladder[i])
		if err != nil {
			return types.GradingResult{}, err
		}
		placements = append(placements, placement)
	}

	if err := tx.MarkGraded(ctx, problemID); err != nil {
		return types.GradingResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.GradingResult{}, fmt.Errorf("commit grading: %w", err)
	}

	result := types.GradingResult{
		Message: fmt.Sprintf("Graded %d submission(s)", len(winners)),
	}
	slots := []**types.Placement{&result.First, &result.Second, &result.Third}
	for i, p := range placements {
		*slots[i] = p
	}

	s.events.ProblemGraded(ctx, problemID, result)
	return result, nil
}

// reward credits one winning submission's prize. The winner's row is
// locked first so concurrent balance mutation serializes.
func (s *GradingService) reward(ctx context.Context, tx RewardTx, winner types.Submission, amount int) (*types.Placement, error) {
	if _, err := tx.LockParticipant(ctx, winner.ParticipantID); err != nil {
		return nil, fmt.Errorf("lock participant %d: %w", winner.ParticipantID, err)
	}

	credited := amount
	if winner.InTeam {
		share, ok, err := s.rewardTeam(ctx, tx, winner.ParticipantID, amount)
		if err != nil {
			return nil, err
		}
		if ok {
			return &types.Placement{ParticipantID: winner.ParticipantID, Reward: share}, nil
		}
	}

	if _, err := tx.Credit(ctx, winner.ParticipantID, credited); err != nil {
		return nil, fmt.Errorf("credit participant %d: %w", winner.ParticipantID, err)
	}
	return &types.Placement{ParticipantID: winner.ParticipantID, Reward: credited}, nil
}

// rewardTeam splits the prize equally across the winner's team. It
// reports ok=false when no live team exists, leaving the caller to
// credit the winner individually.
func (s *GradingService) rewardTeam(ctx context.Context, tx RewardTx, participantID, amount int) (int, bool, error) {
	team, err := tx.Team(ctx, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load team of participant %d: %w", participantID, err)
	}
	if team.Terminated() {
		return 0, false, nil
	}

	members, err := tx.TeamMembers(ctx, team.ID)
	if err != nil {
		return 0, false, fmt.Errorf("load members of team %d: %w", team.ID, err)
	}
	if len(members) == 0 {
		return 0, false, nil
	}

	share := amount / len(members)
	for _, member := range members {
		if _, err := tx.Credit(ctx, member.ID, share); err != nil {
			return 0, false, fmt.Errorf("credit team member %d: %w", member.ID, err)
		}
	}
	return share, true, nil
}
