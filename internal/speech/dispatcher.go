package speech

import (
	"strings"
)

// Terminators are the characters that end a sentence handed to speech
// synthesis.
const Terminators = ".!?"

// State is the per-request speech state. Response is everything received so
// far and is what gets displayed. Pending is the suffix of Response that has
// not been handed to speech yet.
//
// State is a value: transitions return a new State and never mutate the
// receiver, so callers can keep the previous one around.
type State struct {
	Response string
	Pending  string
}

// Feed appends a streamed chunk and returns the new state together with the
// sentences completed by it, in order. Terminators are dropped from the
// returned sentences and surrounding whitespace is preserved. Blank segments,
// such as the gaps between the dots of an ellipsis, are skipped.
func (s State) Feed(chunk string) (State, []string) {
	next := State{
		Response: s.Response + chunk,
		Pending:  s.Pending + chunk,
	}

	sentences, rest := Split(next.Pending)
	next.Pending = rest
	return next, sentences
}

// Flush hands out whatever is left in the sentence buffer at the end of a
// stream. ok is false when there is nothing worth speaking.
func (s State) Flush() (next State, sentence string, ok bool) {
	next = State{Response: s.Response}
	if strings.TrimSpace(s.Pending) == "" {
		return next, "", false
	}
	return next, s.Pending, true
}

// Reset returns the empty state used at the start of a request.
func (s State) Reset() State {
	return State{}
}

// Split cuts text at every terminator. It returns the non-blank segments that
// were closed by a terminator and the unterminated remainder.
func Split(text string) (sentences []string, rest string) {
	rest = text
	for {
		i := strings.IndexAny(rest, Terminators)
		if i < 0 {
			return sentences, rest
		}

		segment := rest[:i]
		rest = rest[i+1:]

		if strings.TrimSpace(segment) == "" {
			continue
		}
		sentences = append(sentences, segment)
	}
}
