package trivia

import (
	"context"
	"math/rand"
	"strings"
)

// Difficulty names accepted by the question source. "any" is special-cased:
// it is never forwarded upstream, the source then draws from all pools.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyAny    = "any"
)

// ValidDifficulty reports whether s names one of the supported pools.
func ValidDifficulty(s string) bool {
	switch s {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyAny:
		return true
	}
	return false
}

// QuestionType is a closed tag over the two question shapes the source
// serves. Matching and display rules differ between them.
type QuestionType int

const (
	TypeMultipleChoice QuestionType = iota
	TypeBoolean
)

// ParseQuestionType maps the source's wire value. Unknown values are treated
// as multiple choice.
func ParseQuestionType(s string) QuestionType {
	if s == "boolean" {
		return TypeBoolean
	}
	return TypeMultipleChoice
}

// Question is immutable once fetched. Prompt and answers arrive HTML-entity
// escaped and stay escaped until display; matching runs on the raw strings.
type Question struct {
	Category         string
	Type             QuestionType
	Difficulty       string
	Prompt           string
	CorrectAnswer    string
	IncorrectAnswers []string
}

// ShuffleChoices builds the display choice set for one question: correct and
// incorrect answers permuted together, every entry trimmed. Index 0 maps to
// display letter A. Recomputed fresh per question, never persisted.
func ShuffleChoices(q Question, rnd *rand.Rand) []string {
	choices := make([]string, 0, len(q.IncorrectAnswers)+1)
	choices = append(choices, q.IncorrectAnswers...)
	choices = append(choices, q.CorrectAnswer)
	rnd.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	for i, c := range choices {
		choices[i] = strings.TrimSpace(c)
	}
	return choices
}

// BatchStatus classifies the outcome of one batch fetch.
type BatchStatus int

const (
	BatchOk BatchStatus = iota
	BatchTooManyRequested
	BatchNoQuestions
	BatchTransportError
)

func (s BatchStatus) String() string {
	switch s {
	case BatchOk:
		return "ok"
	case BatchTooManyRequested:
		return "too_many_requested"
	case BatchNoQuestions:
		return "no_questions"
	case BatchTransportError:
		return "transport_error"
	}
	return "unknown"
}

// Batch is the result of one question fetch. A partial batch (fewer
// questions than requested) is still Ok; NoQuestions means zero results.
type Batch struct {
	Status    BatchStatus
	Questions []Question
}

// Fetcher retrieves a batch of questions from a remote source.
type Fetcher interface {
	Fetch(ctx context.Context, count int, difficulty string) (Batch, error)
}

// Message is one chat message observed in a channel.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Text      string
}

// ChannelGateway exposes the most recent message of a channel. A nil message
// with a nil error means the channel has no observed history yet.
type ChannelGateway interface {
	LatestMessage(ctx context.Context, channelID string) (*Message, error)
}

// Notifier is an optional gateway extension. Subscribe returns a channel
// signaled whenever a new message lands in channelID; signals are coalesced,
// a waiter always re-reads the latest message rather than a backlog. The
// returned func cancels the subscription.
//
// Gateways that cannot push are still usable: the session falls back to
// sampling at its poll interval.
type Notifier interface {
	Subscribe(channelID string) (<-chan struct{}, func())
}

// Presenter renders all outbound trivia messages. Implementations own the
// wording and formatting; the engine never builds user-facing text.
type Presenter interface {
	ShowIntro(channelID string, count int, difficulty string) error
	ShowQuestion(channelID string, q Question, choices []string) error
	ShowFeedback(channelID string, correct bool, correctAnswer string) error
	ShowSummary(channelID string, correct, total int) error
	ShowApology(channelID string) error
	ShowMaintenanceWarning(channelID string) error
	ShowBlockedWarning(channelID string) error
	ShowBatchError(channelID string, status BatchStatus) error
}

// Phase is the session state machine's current state. Finished and Aborted
// are terminal.
type Phase int

const (
	PhaseAwaitingStart Phase = iota
	PhasePresenting
	PhaseAwaitingAnswer
	PhaseGrading
	PhaseFinished
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingStart:
		return "awaiting_start"
	case PhasePresenting:
		return "presenting"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseGrading:
		return "grading"
	case PhaseFinished:
		return "finished"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}
