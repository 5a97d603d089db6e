package mq

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/codearena/apiserver/types"
)

// Channels carrying judging lifecycle events.
const (
	ChannelSubmissionJudged   = "submission.judged"
	ChannelProblemGraded      = "problem.graded"
	ChannelAchievementGranted = "achievement.granted"
)

// EventPublisher emits judging lifecycle events to the broker as JSON
// payloads. Publication is best-effort: broker failures are logged and
// never propagate to the operation that produced the event.
type EventPublisher struct {
	mq *MQ
}

func NewEventPublisher(m *MQ) *EventPublisher {
	return &EventPublisher{mq: m}
}

// SubmissionJudged announces a freshly judged submission.
func (p *EventPublisher) SubmissionJudged(ctx context.Context, submission types.Submission) {
	p.publish(ctx, ChannelSubmissionJudged, submission, map[string]string{
		"problem_id": strconv.Itoa(submission.ProblemID),
		"status":     string(submission.Status),
	})
}

// ProblemGraded announces a completed grading pass.
func (p *EventPublisher) ProblemGraded(ctx context.Context, problemID int, result types.GradingResult) {
	payload := struct {
		ProblemID int                 `json:"problem_id"`
		Result    types.GradingResult `json:"result"`
	}{ProblemID: problemID, Result: result}
	p.publish(ctx, ChannelProblemGraded, payload, map[string]string{
		"problem_id": strconv.Itoa(problemID),
	})
}

// AchievementGranted announces a newly earned achievement.
func (p *EventPublisher) AchievementGranted(ctx context.Context, participantID int, achievement types.Achievement) {
	payload := struct {
		ParticipantID int               `json:"participant_id"`
		Achievement   types.Achievement `json:"achievement"`
	}{ParticipantID: participantID, Achievement: achievement}
	p.publish(ctx, ChannelAchievementGranted, payload, map[string]string{
		"participant_id": strconv.Itoa(participantID),
	})
}

func (p *EventPublisher) publish(ctx context.Context, channel string, payload any, attrs map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s event: %v", channel, err)
		return
	}
	if _, err := p.mq.Publish(ctx, channel, data, attrs); err != nil {
		log.Printf("publish %s event: %v", channel, err)
	}
}
