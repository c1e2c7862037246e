package trivia

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rteja-dev/trivia-bot/internal/metrics"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

func newTestManager(fetcher Fetcher, gw ChannelGateway, presenter Presenter) *Manager {
	return NewManager(
		NewMemoryRegistry(),
		fetcher,
		gw,
		presenter,
		metrics.NewSessionMetrics(prometheus.NewRegistry()),
		ManagerOptions{
			DefaultCount: 5,
			MaxCount:     50,
			PollInterval: 10 * time.Millisecond,
			FetchTimeout: time.Second,
			SelfID:       "bot",
			Rand:         newTestRand(),
		},
		zerolog.Nop(),
	)
}

func multiQuestion(correct string, incorrect ...string) Question {
	return Question{
		Category:         "General Knowledge",
		Type:             TypeMultipleChoice,
		Difficulty:       DifficultyEasy,
		Prompt:           "Prompt",
		CorrectAnswer:    correct,
		IncorrectAnswers: incorrect,
	}
}

func boolQuestion(correct string) Question {
	incorrect := "False"
	if correct == "False" {
		incorrect = "True"
	}
	return Question{
		Category:         "General Knowledge",
		Type:             TypeBoolean,
		Difficulty:       DifficultyEasy,
		Prompt:           "Prompt",
		CorrectAnswer:    correct,
		IncorrectAnswers: []string{incorrect},
	}
}

func TestStartOverCapSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	presenter := &recordingPresenter{}
	m := newTestManager(fetcher, newFakeGateway(), presenter)

	outcome, err := m.Start(context.Background(), "p1", "dm:p1", 51, DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTooManyRequested, outcome)
	assert.Equal(t, 0, fetcher.callCount(), "the fetcher must not be invoked")
	assert.Equal(t, []BatchStatus{BatchTooManyRequested}, presenter.batchErrorStatuses())
	assert.False(t, m.IsPlaying(context.Background(), "p1"))
}

func TestStartAppliesDefaults(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchNoQuestions}}
	presenter := &recordingPresenter{}
	m := newTestManager(fetcher, newFakeGateway(), presenter)

	outcome, err := m.Start(context.Background(), "p1", "dm:p1", 0, "brutal")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoQuestions, outcome)

	count, difficulty := fetcher.lastRequest()
	assert.Equal(t, 5, count)
	assert.Equal(t, DifficultyEasy, difficulty)

	// The slot is released when no session spawns.
	assert.False(t, m.IsPlaying(context.Background(), "p1"))
}

func TestStartTransportErrorReleasesSlot(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchTransportError}, err: errors.New("connection refused")}
	presenter := &recordingPresenter{}
	m := newTestManager(fetcher, newFakeGateway(), presenter)

	outcome, err := m.Start(context.Background(), "p1", "dm:p1", 5, DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportError, outcome)
	assert.Equal(t, []BatchStatus{BatchTransportError}, presenter.batchErrorStatuses())
	assert.False(t, m.IsPlaying(context.Background(), "p1"))
}

func TestStartRejectsSecondSession(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: []Question{multiQuestion("Paris", "London", "Berlin")}}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 1, DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	outcome, err = m.Start(ctx, "p1", "dm:p1", 1, DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPlaying, outcome)
	assert.Equal(t, 1, fetcher.callCount(), "the rejected start must not fetch")

	// The first session is unaffected: answer it and let it finish.
	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	gw.post("dm:p1", "p1", "Paris")
	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)

	summaries := presenter.summaryCalls()
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].correct)
	assert.Equal(t, 1, summaries[0].total)
}

func TestFullSessionFlow(t *testing.T) {
	questions := []Question{
		multiQuestion("Jean &amp; Paul", "Ringo", "George"),
		boolQuestion("True"),
	}
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: questions}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 2, DifficultyMedium)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	// Question 1: an unmatched reply is graded incorrect, not skipped.
	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	gw.post("dm:p1", "p1", "Pete")

	// Question 2 only goes out after question 1's waiter is gone.
	require.Eventually(t, func() bool {
		return presenter.questionCount() == 2 && gw.subscriberCount("dm:p1") == 1
	}, testTimeout, testTick)
	gw.post("dm:p1", "p1", "true")

	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)

	feedback := presenter.feedbackCalls()
	require.Len(t, feedback, 2)
	assert.False(t, feedback[0].correct)
	// Incorrect multiple-choice feedback carries the unescaped answer.
	assert.Equal(t, "Jean & Paul", feedback[0].correctAnswer)
	assert.True(t, feedback[1].correct)

	summaries := presenter.summaryCalls()
	require.Len(t, summaries, 1, "summary must be shown exactly once")
	assert.Equal(t, "dm:p1", summaries[0].channelID)
	assert.Equal(t, 1, summaries[0].correct)
	assert.Equal(t, 2, summaries[0].total)
}

func TestExitAbortsWithoutSummary(t *testing.T) {
	questions := []Question{multiQuestion("Paris", "London"), multiQuestion("Berlin", "Rome")}
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: questions}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 2, DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	gw.post("dm:p1", "p1", "EXIT")

	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)
	assert.Empty(t, presenter.summaryCalls(), "exit must not produce a summary")
	assert.Empty(t, presenter.feedbackCalls(), "exit is never graded")
	assert.Equal(t, 0, presenter.apologyCount())
}

func TestCancelStopsSession(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: []Question{multiQuestion("Paris", "London")}}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 1, DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	m.Cancel(ctx, "p1")

	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)
	assert.Empty(t, presenter.summaryCalls())
	assert.Equal(t, 0, presenter.apologyCount())
}

func TestCancelUnknownPlayerIsNoop(t *testing.T) {
	presenter := &recordingPresenter{}
	m := newTestManager(&stubFetcher{}, newFakeGateway(), presenter)

	m.Cancel(context.Background(), "ghost")

	assert.Empty(t, presenter.summaryCalls())
	assert.Empty(t, presenter.batchErrorStatuses())
	assert.Equal(t, 0, presenter.apologyCount())
}

func TestBroadcastShutdownWarning(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: []Question{multiQuestion("Paris", "London")}}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	for _, p := range []string{"p1", "p2"} {
		outcome, err := m.Start(ctx, p, "dm:"+p, 1, DifficultyEasy)
		require.NoError(t, err)
		require.Equal(t, OutcomeStarted, outcome)
	}
	require.Eventually(t, func() bool {
		return gw.subscriberCount("dm:p1") == 1 && gw.subscriberCount("dm:p2") == 1
	}, testTimeout, testTick)

	m.BroadcastShutdownWarning(ctx)

	assert.ElementsMatch(t, []string{"dm:p1", "dm:p2"}, presenter.maintenanceChannels())
	assert.True(t, m.IsPlaying(ctx, "p1"), "warning must not end sessions")
	assert.True(t, m.IsPlaying(ctx, "p2"))

	m.CancelAll(ctx)
	assert.False(t, m.IsPlaying(ctx, "p1"))
	assert.False(t, m.IsPlaying(ctx, "p2"))
}

func TestChannelReadFailureAborts(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: []Question{multiQuestion("Paris", "London")}}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 1, DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	gw.setFailure("dm:p1", errors.New("history unavailable"))
	gw.post("dm:p1", "p1", "Paris")

	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)
	assert.Equal(t, 1, presenter.apologyCount())
	assert.Empty(t, presenter.summaryCalls())
}

func TestOwnMessagesDoNotCountAsReplies(t *testing.T) {
	fetcher := &stubFetcher{batch: Batch{Status: BatchOk, Questions: []Question{multiQuestion("Paris", "London")}}}
	presenter := &recordingPresenter{}
	gw := newFakeGateway()
	m := newTestManager(fetcher, gw, presenter)
	ctx := context.Background()

	outcome, err := m.Start(ctx, "p1", "dm:p1", 1, DifficultyEasy)
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	require.Eventually(t, func() bool { return gw.subscriberCount("dm:p1") == 1 }, testTimeout, testTick)
	gw.post("dm:p1", "bot", "Category: General Knowledge")
	gw.post("dm:p1", "p1", "Paris")

	require.Eventually(t, func() bool { return !m.IsPlaying(ctx, "p1") }, testTimeout, testTick)

	feedback := presenter.feedbackCalls()
	require.Len(t, feedback, 1)
	assert.True(t, feedback[0].correct, "only the player's message is graded")
}
