package trivia

import (
	"strings"
	"unicode"
)

// MatchResult reports how a reply lined up against the shuffled choices.
// Index is -1 when the reply matched no choice.
type MatchResult struct {
	Correct bool
	Index   int
}

// Match grades a raw reply against the shuffled choice set. Rules apply in
// order, case-insensitively:
//
//  1. The reply equals one of the choices: that choice's index matched. It is
//     correct when the matched entry equals the correct answer — compared
//     untrimmed for boolean questions and trimmed for multiple choice. The
//     asymmetry comes from the question source's data and is kept as is.
//  2. A single-character reply read as an uppercase letter (A=0, B=1, ...)
//     inside the choice range: correct when that index holds the correct
//     answer verbatim.
//  3. Anything else is incorrect with no matched index.
//
// Boolean questions get one extra chance: a reply parseable as true/false is
// compared against the correct answer parsed the same way, and a parsed
// equality counts as correct even when rules 1 and 2 did not.
//
// "exit" never reaches this function; the session intercepts it first.
func Match(reply string, choices []string, correctAnswer string, qt QuestionType) MatchResult {
	res := MatchResult{Index: -1}

	reference := correctAnswer
	if qt == TypeMultipleChoice {
		reference = strings.TrimSpace(correctAnswer)
	}

	for i, choice := range choices {
		if strings.EqualFold(choice, reply) {
			res.Index = i
			res.Correct = strings.EqualFold(choice, reference)
			break
		}
	}

	if res.Index < 0 && len(reply) == 1 {
		if idx := int(unicode.ToUpper(rune(reply[0]))) - 'A'; idx >= 0 && idx < len(choices) {
			res.Index = idx
			res.Correct = idx == indexOfAnswer(choices, correctAnswer)
		}
	}

	if qt == TypeBoolean && !res.Correct {
		if replyVal, ok := parseBool(reply); ok {
			if answerVal, ok := parseBool(correctAnswer); ok && replyVal == answerVal {
				res.Correct = true
			}
		}
	}

	return res
}

// indexOfAnswer locates the correct answer among the trimmed choices without
// folding case or whitespace. A correct answer carrying stray padding never
// matches; the letter rule then grades incorrect, mirroring the source data
// quirk described on Match.
func indexOfAnswer(choices []string, answer string) int {
	for i, c := range choices {
		if c == answer {
			return i
		}
	}
	return -1
}

func parseBool(s string) (value, ok bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}
