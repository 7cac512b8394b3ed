package routing

import (
	"errors"
	"fmt"

	"comitebot/pkg/action"
)

// ErrUnknownAction is returned when an action type has no configured destination.
var ErrUnknownAction = errors.New("no destination configured for action")

// Destination is one topic inside a group chat.
type Destination struct {
	GroupID int64
	TopicID int
}

// Table maps action types to destinations. It is built once at startup and only
// read afterwards, so it needs no locking.
type Table struct {
	routes map[action.Type]Destination
}

// NewTable copies routes into an immutable table.
func NewTable(routes map[action.Type]Destination) *Table {
	copied := make(map[action.Type]Destination, len(routes))
	for t, dest := range routes {
		copied[t] = dest
	}

	return &Table{routes: copied}
}

// Resolve returns the destination for t.
func (t *Table) Resolve(typ action.Type) (Destination, error) {
	if t == nil {
		return Destination{}, fmt.Errorf("resolve %q: %w", typ, ErrUnknownAction)
	}

	dest, ok := t.routes[typ]
	if !ok {
		return Destination{}, fmt.Errorf("resolve %q: %w", typ, ErrUnknownAction)
	}

	return dest, nil
}
