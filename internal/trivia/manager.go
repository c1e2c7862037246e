package trivia

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rteja-dev/trivia-bot/internal/logging"
	"github.com/rteja-dev/trivia-bot/internal/metrics"
)

// Outcome reports how a Start request was resolved at admission time. When
// Start returns a non-nil error the outcome is meaningless.
type Outcome int

const (
	OutcomeStarted Outcome = iota
	OutcomeAlreadyPlaying
	OutcomeTooManyRequested
	OutcomeNoQuestions
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeAlreadyPlaying:
		return "already_playing"
	case OutcomeTooManyRequested:
		return "too_many_requested"
	case OutcomeNoQuestions:
		return "no_questions"
	case OutcomeTransportError:
		return "transport_error"
	}
	return "unknown"
}

// ManagerOptions configures session defaults and limits.
type ManagerOptions struct {
	// DefaultCount is the game length when the player names no usable count.
	DefaultCount int
	// MaxCount is the hard ceiling, checked before any fetch I/O.
	MaxCount int
	// PollInterval is the fallback sampling interval while awaiting answers.
	PollInterval time.Duration
	// FetchTimeout bounds one question batch request.
	FetchTimeout time.Duration
	// SelfID is the bot's own author id; its messages never count as replies.
	SelfID string
	// Rand seeds choice shuffling. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Manager orchestrates registry admission and session lifecycle, and is the
// only surface the command layer talks to.
type Manager struct {
	registry  Registry
	fetcher   Fetcher
	gateway   ChannelGateway
	presenter Presenter
	metrics   *metrics.SessionMetrics
	logger    zerolog.Logger
	opts      ManagerOptions

	mu       sync.Mutex
	sessions map[string]*liveSession
	wg       sync.WaitGroup
}

type liveSession struct {
	channelID string
	cancel    context.CancelFunc
}

// NewManager wires the session engine. All collaborators are required.
func NewManager(
	registry Registry,
	fetcher Fetcher,
	gateway ChannelGateway,
	presenter Presenter,
	sessionMetrics *metrics.SessionMetrics,
	opts ManagerOptions,
	logger zerolog.Logger,
) *Manager {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 5
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 4 * time.Second
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		registry:  registry,
		fetcher:   fetcher,
		gateway:   gateway,
		presenter: presenter,
		metrics:   sessionMetrics,
		logger:    logger,
		opts:      opts,
		sessions:  make(map[string]*liveSession),
	}
}

// Start validates the request, admits the player, fetches a batch and spawns
// the session goroutine. channelID is the player's private channel where the
// whole game happens. Registry release is guaranteed on every terminal path.
func (m *Manager) Start(ctx context.Context, playerID, channelID string, requestedCount int, difficulty string) (Outcome, error) {
	count := requestedCount
	if count <= 0 {
		count = m.opts.DefaultCount
	}
	if !ValidDifficulty(difficulty) {
		difficulty = DifficultyEasy
	}

	if count > m.opts.MaxCount {
		m.metrics.FetchFailures.WithLabelValues(BatchTooManyRequested.String()).Inc()
		if err := m.presenter.ShowBatchError(channelID, BatchTooManyRequested); err != nil {
			m.logger.Warn().Err(err).Msg("show batch error failed")
		}
		return OutcomeTooManyRequested, nil
	}

	acquired, err := m.registry.TryAcquire(ctx, playerID)
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("admission check: %w", err)
	}
	if !acquired {
		return OutcomeAlreadyPlaying, nil
	}

	release := func() {
		// Background context: release must succeed even when the caller's
		// context is already gone.
		if err := m.registry.Release(context.Background(), playerID); err != nil {
			m.logger.Warn().Err(err).Str("player_id", playerID).Msg("registry release failed")
		}
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancelFetch()
	batch, err := m.fetcher.Fetch(fetchCtx, count, difficulty)
	if batch.Status != BatchOk {
		release()
		m.metrics.FetchFailures.WithLabelValues(batch.Status.String()).Inc()
		if err != nil {
			m.logger.Warn().Err(err).Str("player_id", playerID).Msg("question fetch failed")
		}
		if perr := m.presenter.ShowBatchError(channelID, batch.Status); perr != nil {
			m.logger.Warn().Err(perr).Msg("show batch error failed")
		}
		if batch.Status == BatchNoQuestions {
			return OutcomeNoQuestions, nil
		}
		return OutcomeTransportError, nil
	}

	sessionID := uuid.NewString()
	sessionLogger := logging.WithSession(m.logger, sessionID, playerID)
	sessionLogger.Info().
		Int("questions", len(batch.Questions)).
		Str("difficulty", difficulty).
		Msg("starting trivia session")

	if err := m.presenter.ShowIntro(channelID, count, difficulty); err != nil {
		sessionLogger.Warn().Err(err).Msg("show intro failed")
	}

	sessCtx, cancelSess := context.WithCancel(context.Background())
	sess := newSession(
		playerID,
		channelID,
		batch.Questions,
		m.gateway,
		m.presenter,
		m.metrics,
		m.opts.PollInterval,
		m.opts.SelfID,
		rand.New(rand.NewSource(m.opts.Rand.Int63())),
		sessionLogger,
	)

	m.mu.Lock()
	m.sessions[playerID] = &liveSession{channelID: channelID, cancel: cancelSess}
	m.mu.Unlock()

	m.metrics.Started.Inc()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer release()
		defer func() {
			m.mu.Lock()
			delete(m.sessions, playerID)
			m.mu.Unlock()
			cancelSess()
		}()

		phase := sess.Run(sessCtx)
		if phase == PhaseFinished {
			m.metrics.Finished.Inc()
		} else {
			m.metrics.Aborted.Inc()
		}
		sessionLogger.Info().Stringer("phase", phase).Msg("trivia session over")
	}()

	return OutcomeStarted, nil
}

// Cancel stops a player's session as if they had typed "exit". Calling it
// for a player with no session does nothing.
func (m *Manager) Cancel(_ context.Context, playerID string) {
	m.mu.Lock()
	live, ok := m.sessions[playerID]
	m.mu.Unlock()
	if !ok {
		return
	}
	live.cancel()
}

// IsPlaying reports whether the player has a live session.
func (m *Manager) IsPlaying(ctx context.Context, playerID string) bool {
	playing, err := m.registry.Contains(ctx, playerID)
	if err != nil {
		m.logger.Warn().Err(err).Str("player_id", playerID).Msg("registry lookup failed")
		return false
	}
	return playing
}

// WarnIfPlaying tells an already-playing player, in the channel where they
// tried to start a new game, that a session is still running. Reports
// whether a session exists.
func (m *Manager) WarnIfPlaying(ctx context.Context, playerID, channelID string) bool {
	if !m.IsPlaying(ctx, playerID) {
		return false
	}
	if err := m.presenter.ShowBlockedWarning(channelID); err != nil {
		m.logger.Warn().Err(err).Msg("show blocked warning failed")
	}
	return true
}

// BroadcastShutdownWarning sends the one-minute maintenance notice to every
// active player's game channel. Session state and registry membership are
// untouched.
func (m *Manager) BroadcastShutdownWarning(ctx context.Context) {
	ids, err := m.registry.Snapshot(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("registry snapshot failed")
		return
	}
	for _, playerID := range ids {
		m.mu.Lock()
		live, ok := m.sessions[playerID]
		m.mu.Unlock()
		if !ok {
			// Session lives on another instance sharing the registry.
			continue
		}
		if err := m.presenter.ShowMaintenanceWarning(live.channelID); err != nil {
			m.logger.Warn().Err(err).Str("player_id", playerID).Msg("maintenance warning failed")
		}
	}
}

// CancelAll stops every live session and waits for their goroutines to
// drain, bounded by ctx.
func (m *Manager) CancelAll(ctx context.Context) {
	m.mu.Lock()
	for _, live := range m.sessions {
		live.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn().Msg("timed out waiting for sessions to drain")
	}
}
