package action

import "strings"

// Type selects the validation rules and destination for one submission.
type Type string

const (
	Query      Type = "consulta"
	Suggestion Type = "sugerencia"
)

const payloadPrefix = "iniciar_"

// All lists every known action type in display order.
func All() []Type {
	return []Type{Query, Suggestion}
}

// FromPayload maps callback data or a deep-link argument to an action type.
func FromPayload(payload string) (Type, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, payloadPrefix) {
		return "", false
	}

	t := Type(strings.TrimPrefix(payload, payloadPrefix))
	if !t.Valid() {
		return "", false
	}

	return t, true
}

// Valid reports whether t is one of the known action types.
func (t Type) Valid() bool {
	return t == Query || t == Suggestion
}

// Payload returns the callback/deep-link payload that starts this action.
func (t Type) Payload() string {
	return payloadPrefix + string(t)
}

// Label is the lower-case noun shown to users ("consulta").
func (t Type) Label() string {
	return string(t)
}

// Title is the capitalized noun used in headers ("Consulta").
func (t Type) Title() string {
	switch t {
	case Query:
		return "Consulta"
	case Suggestion:
		return "Sugerencia"
	default:
		return string(t)
	}
}

// Emoji is the marker used on entry buttons and forwarded headers.
func (t Type) Emoji() string {
	switch t {
	case Query:
		return "🙋‍♂️"
	case Suggestion:
		return "💡"
	default:
		return ""
	}
}
