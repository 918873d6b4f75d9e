// Package intent classifies inbound utterances before the chat
// dispatcher decides between a fast local answer and the
// chat-completion fallback.
package intent

import (
	"strings"
	"unicode"
)

// Type identifies the kind of fast path a recognizer matched
type Type string

const (
	TypeNone          Type = "none"
	TypeWeather       Type = "weather"
	TypeTime          Type = "time"
	TypeDatabaseQuery Type = "database_query"
)

// Match is the result of analyzing one utterance. Confidence is in
// [0,1]; Params carries recognizer-extracted arguments such as the
// city name or the question text.
type Match struct {
	Matched    bool
	Intent     Type
	Confidence float64
	Params     map[string]string
}

// NoMatch is the zero result every recognizer returns when it fails closed
func NoMatch() Match {
	return Match{Intent: TypeNone}
}

// Recognizer scores one utterance against a single intent
type Recognizer interface {
	Analyze(text string) Match
}

// Cascade runs a fixed, ordered set of recognizers and arbitrates by
// confidence. Selection is deterministic: the best match wins only
// with strictly higher confidence, so exact ties resolve to the
// recognizer registered first.
type Cascade struct {
	recognizers []Recognizer
}

// NewCascade creates a cascade; registration order is selection order
func NewCascade(recognizers ...Recognizer) *Cascade {
	return &Cascade{recognizers: recognizers}
}

// Recognize runs every recognizer and returns the winning match, or a
// non-match with intent "none" when nothing fired.
func (c *Cascade) Recognize(text string) Match {
	best := NoMatch()
	for _, r := range c.recognizers {
		m := r.Analyze(text)
		if !m.Matched {
			continue
		}
		if !best.Matched || m.Confidence > best.Confidence {
			best = m
		}
	}
	return best
}

// commandPrefix is the trigger character for command-style utterances
const commandPrefix = "@"

// splitCommand splits "@cmd rest of text" into the command word and the
// trimmed remainder. ok is false when the trigger prefix is absent.
func splitCommand(text string) (command, params string, ok bool) {
	if !strings.HasPrefix(text, commandPrefix) {
		return "", "", false
	}
	body := strings.TrimSpace(strings.TrimPrefix(text, commandPrefix))
	if body == "" {
		return "", "", false
	}
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return body, "", true
	}
	return body[:idx], strings.TrimSpace(body[idx:]), true
}
