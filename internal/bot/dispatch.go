package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rteja-dev/trivia-bot/internal/trivia"
)

const commandPrefix = "!"

// sessionManager is the slice of trivia.Manager the dispatcher drives.
type sessionManager interface {
	Start(ctx context.Context, playerID, channelID string, requestedCount int, difficulty string) (trivia.Outcome, error)
	Cancel(ctx context.Context, playerID string)
	WarnIfPlaying(ctx context.Context, playerID, channelID string) bool
}

// messageSource is the slice of the gateway client the dispatcher consumes.
type messageSource interface {
	Messages() <-chan trivia.Message
	SelfID() string
	DMChannelID(userID string) string
}

// Dispatcher turns inbound chat messages into trivia commands. Everything
// the bot says during a game is driven by the session engine, not here.
type Dispatcher struct {
	manager sessionManager
	source  messageSource
	logger  zerolog.Logger
}

func NewDispatcher(manager sessionManager, source messageSource, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		manager: manager,
		source:  source,
		logger:  logger,
	}
}

// Run consumes the gateway stream until ctx ends or the stream closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-d.source.Messages():
			if !ok {
				return fmt.Errorf("gateway message stream closed")
			}
			d.handle(ctx, msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg trivia.Message) {
	if msg.AuthorID == d.source.SelfID() {
		return
	}
	if !strings.HasPrefix(msg.Text, commandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Text, commandPrefix))
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "trivia":
		d.startTrivia(ctx, msg, fields[1:])
	case "stop":
		d.manager.Cancel(ctx, msg.AuthorID)
	}
}

func (d *Dispatcher) startTrivia(ctx context.Context, msg trivia.Message, args []string) {
	dmChannel := d.source.DMChannelID(msg.AuthorID)

	// A player poking the bot from a public channel while mid-game gets
	// pointed back to their private chat instead of a failed admission.
	if msg.ChannelID != dmChannel && d.manager.WarnIfPlaying(ctx, msg.AuthorID, msg.ChannelID) {
		return
	}

	count, difficulty := parseArgs(args)
	outcome, err := d.manager.Start(ctx, msg.AuthorID, dmChannel, count, difficulty)
	if err != nil {
		d.logger.Error().Err(err).Str("player_id", msg.AuthorID).Msg("trivia start failed")
		return
	}
	d.logger.Info().
		Str("player_id", msg.AuthorID).
		Stringer("outcome", outcome).
		Msg("trivia command handled")
}

// parseArgs reads "[count] [difficulty]" loosely: the first argument is the
// count when numeric, and the first argument naming a difficulty wins.
// Zero values mean "use the defaults".
func parseArgs(args []string) (count int, difficulty string) {
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			count = n
		}
	}
	for _, arg := range args {
		if trivia.ValidDifficulty(arg) {
			difficulty = arg
			break
		}
	}
	return count, difficulty
}
