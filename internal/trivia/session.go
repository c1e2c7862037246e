package trivia

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rteja-dev/trivia-bot/internal/metrics"
)

const exitCommand = "exit"

// Session drives one player's trivia game from the first question to the
// final summary. Every field below is owned by the Run goroutine; the only
// outside influence is cancellation of the context passed to Run.
type Session struct {
	playerID  string
	channelID string
	questions []Question

	gateway   ChannelGateway
	presenter Presenter
	metrics   *metrics.SessionMetrics
	logger    zerolog.Logger

	pollInterval time.Duration
	selfID       string
	rnd          *rand.Rand

	phase    Phase
	correct  int
	answered int
}

func newSession(
	playerID, channelID string,
	questions []Question,
	gateway ChannelGateway,
	presenter Presenter,
	sessionMetrics *metrics.SessionMetrics,
	pollInterval time.Duration,
	selfID string,
	rnd *rand.Rand,
	logger zerolog.Logger,
) *Session {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Session{
		playerID:     playerID,
		channelID:    channelID,
		questions:    questions,
		gateway:      gateway,
		presenter:    presenter,
		metrics:      sessionMetrics,
		logger:       logger,
		pollInterval: pollInterval,
		selfID:       selfID,
		rnd:          rnd,
		phase:        PhaseAwaitingStart,
	}
}

// Run executes the question loop until Finished or Aborted and returns the
// terminal phase. The caller owns registry release.
func (s *Session) Run(ctx context.Context) Phase {
	for i, q := range s.questions {
		choices := ShuffleChoices(q, s.rnd)

		s.phase = PhasePresenting
		if err := s.presenter.ShowQuestion(s.channelID, q, choices); err != nil {
			s.logger.Warn().Err(err).Msg("show question failed")
		}

		// Baseline for polling: whatever is newest right after the question
		// went out. Empty when the channel has no history yet.
		baseline, err := s.latestMessageID(ctx)
		if err != nil {
			return s.abortWithApology(err)
		}

		s.logger.Debug().
			Int("question", i+1).
			Int("total", len(s.questions)).
			Msg("waiting for answer")

		s.phase = PhaseAwaitingAnswer
		reply, err := s.awaitReply(ctx, baseline)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.phase = PhaseAborted
			return s.phase
		default:
			return s.abortWithApology(err)
		}

		if strings.EqualFold(reply.Text, exitCommand) {
			s.phase = PhaseAborted
			return s.phase
		}

		s.phase = PhaseGrading
		s.grade(q, choices, reply.Text)
	}

	s.phase = PhaseFinished
	if err := s.presenter.ShowSummary(s.channelID, s.correct, s.answered); err != nil {
		s.logger.Warn().Err(err).Msg("show summary failed")
	}
	return s.phase
}

func (s *Session) grade(q Question, choices []string, reply string) {
	result := Match(reply, choices, q.CorrectAnswer, q.Type)
	s.answered++
	label := "incorrect"
	if result.Correct {
		s.correct++
		label = "correct"
	}
	s.metrics.Answers.WithLabelValues(label).Inc()
	s.logger.Debug().
		Str("reply", reply).
		Int("matched_index", result.Index).
		Bool("correct", result.Correct).
		Msg("answer graded")

	// The incorrect-answer text is unescaped for multiple choice only; the
	// boolean strings carry no entities and the source behavior is kept.
	answerText := q.CorrectAnswer
	if q.Type == TypeMultipleChoice {
		answerText = html.UnescapeString(q.CorrectAnswer)
	}
	if err := s.presenter.ShowFeedback(s.channelID, result.Correct, answerText); err != nil {
		s.logger.Warn().Err(err).Msg("show feedback failed")
	}
}

// awaitReply blocks until the channel's latest message moves past baseline.
// With a pushing gateway the wait is event-driven; otherwise it samples at
// the poll interval. Messages arriving between wakes are coalesced: only the
// newest one is ever inspected, earlier ones are skipped. The bot's own
// messages advance the baseline instead of counting as replies.
func (s *Session) awaitReply(ctx context.Context, baseline string) (*Message, error) {
	var notify <-chan struct{}
	if n, ok := s.gateway.(Notifier); ok {
		ch, cancel := n.Subscribe(s.channelID)
		defer cancel()
		notify = ch
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		msg, err := s.gateway.LatestMessage(ctx, s.channelID)
		if err != nil {
			return nil, fmt.Errorf("read channel %s: %w", s.channelID, err)
		}
		switch {
		case msg == nil:
			if baseline != "" {
				return nil, fmt.Errorf("channel %s: message history vanished", s.channelID)
			}
			// No history yet; keep waiting for the first message.
		case msg.ID != baseline:
			if s.selfID != "" && msg.AuthorID == s.selfID {
				baseline = msg.ID
				continue
			}
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		case <-ticker.C:
		}
	}
}

func (s *Session) latestMessageID(ctx context.Context) (string, error) {
	msg, err := s.gateway.LatestMessage(ctx, s.channelID)
	if err != nil {
		return "", fmt.Errorf("read channel %s: %w", s.channelID, err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.ID, nil
}

// abortWithApology ends the session after a structural channel failure. Not
// retried: the channel is assumed unusable.
func (s *Session) abortWithApology(cause error) Phase {
	s.logger.Error().Err(cause).Msg("channel read failed, aborting session")
	if err := s.presenter.ShowApology(s.channelID); err != nil {
		s.logger.Warn().Err(err).Msg("show apology failed")
	}
	s.phase = PhaseAborted
	return s.phase
}
