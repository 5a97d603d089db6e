package services

import (
	"context"

	"github.com/codearena/apiserver/types"
)

// Events receives notifications about judging outcomes. Publication is
// best-effort: failures are logged by implementations and never fail the
// operation that produced the event.
type Events interface {
	SubmissionJudged(ctx context.Context, submission types.Submission)
	ProblemGraded(ctx context.Context, problemID int, result types.GradingResult)
	AchievementGranted(ctx context.Context, participantID int, achievement types.Achievement)
}

// NopEvents discards all events. Used when no broker is configured.
type NopEvents struct{}

func (NopEvents) SubmissionJudged(context.Context, types.Submission)         {}
func (NopEvents) ProblemGraded(context.Context, int, types.GradingResult)    {}
func (NopEvents) AchievementGranted(context.Context, int, types.Achievement) {}
