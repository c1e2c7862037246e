package gateway

import (
	"fmt"
	"html"
	"strings"

	"github.com/rteja-dev/trivia-bot/internal/trivia"
)

// sender is the slice of Client the presenter needs.
type sender interface {
	Send(channelID, kind string, payload any) error
}

// Presenter formats the bot's trivia messages and ships them through the
// gateway. All HTML-entity unescaping happens here, at display time; the
// engine matches on the raw strings.
type Presenter struct {
	send sender
}

var _ trivia.Presenter = (*Presenter)(nil)

func NewPresenter(client *Client) *Presenter {
	return &Presenter{send: client}
}

type textPayload struct {
	Text string `json:"text"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedPayload struct {
	Author      string       `json:"author,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

func (p *Presenter) ShowIntro(channelID string, count int, difficulty string) error {
	text := fmt.Sprintf(
		"Let's play Trivia! There will be %d questions with %s difficulty for you to answer.\nType \"exit\" to quit any time!",
		count, difficulty,
	)
	return p.send.Send(channelID, "message", textPayload{Text: text})
}

func (p *Presenter) ShowQuestion(channelID string, q trivia.Question, choices []string) error {
	e := embedPayload{
		Author:      "Difficulty: " + capitalize(q.Difficulty),
		Title:       "Category: " + q.Category,
		Description: html.UnescapeString(q.Prompt),
	}
	for i, choice := range choices {
		e.Fields = append(e.Fields, embedField{
			Name:   string(rune('A' + i)),
			Value:  html.UnescapeString(choice),
			Inline: true,
		})
	}
	return p.send.Send(channelID, "embed", e)
}

func (p *Presenter) ShowFeedback(channelID string, correct bool, correctAnswer string) error {
	if correct {
		return p.send.Send(channelID, "message", textPayload{Text: "You are correct! =D"})
	}
	text := fmt.Sprintf("You're incorrect... :(\nThe correct answer is %s.", correctAnswer)
	return p.send.Send(channelID, "message", textPayload{Text: text})
}

func (p *Presenter) ShowSummary(channelID string, correct, total int) error {
	text := fmt.Sprintf("Thanks for playing trivia with me! You got %d out of %d correct!", correct, total)
	return p.send.Send(channelID, "message", textPayload{Text: text})
}

func (p *Presenter) ShowApology(channelID string) error {
	return p.send.Send(channelID, "message", textPayload{Text: "I hit a hiccup and need to take a break :("})
}

func (p *Presenter) ShowMaintenanceWarning(channelID string) error {
	return p.send.Send(channelID, "message", textPayload{Text: "Friendly Reminder: I will be going down for maintenance in one minute!"})
}

func (p *Presenter) ShowBlockedWarning(channelID string) error {
	return p.send.Send(channelID, "message", textPayload{Text: "It looks like you're still in a trivia game... Type \"exit\" in my private chat to quit it!"})
}

func (p *Presenter) ShowBatchError(channelID string, status trivia.BatchStatus) error {
	var text string
	switch status {
	case trivia.BatchTooManyRequested:
		text = "I can only ask a maximum of 50 questions at a time!"
	case trivia.BatchNoQuestions:
		text = "I don't have questions to ask you... Let's play later! =3"
	default:
		text = "I couldn't reach my question bank... Let's play later! =3"
	}
	return p.send.Send(channelID, "message", textPayload{Text: text})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
