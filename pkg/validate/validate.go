// Package validate checks submitted text before it is forwarded.
//
// Validation is a pure function of the action type and the text: no state is
// read or written, so identical inputs always produce identical results.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"comitebot/pkg/action"
)

// MinLength is the minimum number of characters after trimming.
const MinLength = 15

// MaxLength is the maximum number of characters after trimming. Telegram caps a
// message at 4096 characters and the forwarded body adds a header plus the
// sender's name, username and id (up to about 250 characters).
const MaxLength = 3500

// Reason explains why a submission was rejected.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonTooShort       Reason = "too_short"
	ReasonTooLong        Reason = "too_long"
	ReasonForbiddenTopic Reason = "forbidden_topic"
)

// Result is the outcome of Validate. Topic is set for ReasonForbiddenTopic.
type Result struct {
	OK     bool
	Reason Reason
	Topic  string
}

// ForbiddenTopic groups the keywords that identify one already-answered topic.
type ForbiddenTopic struct {
	Name     string
	Keywords []string
}

// forbiddenTopics is checked in order; the first matching topic wins.
var forbiddenTopics = []ForbiddenTopic{
	{Name: "Bolsa de horas", Keywords: []string{"bolsa de horas"}},
	{Name: "Permisos", Keywords: []string{"permiso", "permisos"}},
	{Name: "Incapacidad temporal", Keywords: []string{"incapacidad temporal", "baja"}},
	{Name: "Excedencias", Keywords: []string{"excedencia", "excedencias"}},
}

type compiledTopic struct {
	name     string
	patterns []*regexp.Regexp
}

var compiledTopics = compileTopics(forbiddenTopics)

// compileTopics builds whole-word matchers: a keyword only matches when it is
// bounded by a non-letter/non-digit rune or by the edges of the text.
func compileTopics(topics []ForbiddenTopic) []compiledTopic {
	out := make([]compiledTopic, 0, len(topics))
	for _, topic := range topics {
		ct := compiledTopic{name: topic.Name}
		for _, keyword := range topic.Keywords {
			expr := `(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(strings.ToLower(keyword)) + `(?:$|[^\p{L}\p{N}])`
			ct.patterns = append(ct.patterns, regexp.MustCompile(expr))
		}
		out = append(out, ct)
	}

	return out
}

// ForbiddenTopics returns a copy of the configured keyword table.
func ForbiddenTopics() []ForbiddenTopic {
	out := make([]ForbiddenTopic, len(forbiddenTopics))
	for i, topic := range forbiddenTopics {
		out[i] = ForbiddenTopic{Name: topic.Name, Keywords: append([]string(nil), topic.Keywords...)}
	}
	return out
}

// Validate applies the length rules to every action and the forbidden-topic rule
// to queries only.
func Validate(t action.Type, text string) Result {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	if length < MinLength {
		return Result{Reason: ReasonTooShort}
	}
	if length > MaxLength {
		return Result{Reason: ReasonTooLong}
	}

	if t == action.Query {
		if topic, ok := matchForbiddenTopic(trimmed); ok {
			return Result{Reason: ReasonForbiddenTopic, Topic: topic}
		}
	}

	return Result{OK: true}
}

func matchForbiddenTopic(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, topic := range compiledTopics {
		for _, pattern := range topic.patterns {
			if pattern.MatchString(lower) {
				return topic.name, true
			}
		}
	}

	return "", false
}
