package bus

import "strings"

// InboundKind distinguishes the three event shapes a channel delivers.
type InboundKind string

const (
	KindCallback InboundKind = "callback"
	KindCommand  InboundKind = "command"
	KindText     InboundKind = "text"
)

// ChatTypePrivate is the only chat type the conversation flow runs in.
const ChatTypePrivate = "private"

// Sender identifies the user behind an inbound event.
type Sender struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (s Sender) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name != "" {
		return name
	}
	if s.Username != "" {
		return "@" + s.Username
	}

	return "Usuario"
}

// InboundEvent is one button press, command, or text message from a channel.
type InboundEvent struct {
	Kind       InboundKind `json:"kind"`
	Channel    string      `json:"channel"`
	UpdateID   int         `json:"update_id,omitempty"`
	Sender     Sender      `json:"sender"`
	ChatID     int64       `json:"chat_id,omitempty"`
	ChatType   string      `json:"chat_type,omitempty"`
	CallbackID string      `json:"callback_id,omitempty"`
	Data       string      `json:"data,omitempty"`
	Command    string      `json:"command,omitempty"`
	Args       []string    `json:"args,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// UserID is the identifier sessions are keyed by.
func (e InboundEvent) UserID() int64 {
	return e.Sender.ID
}

// Private reports whether the event arrived in a 1:1 chat with the bot.
func (e InboundEvent) Private() bool {
	return e.ChatType == ChatTypePrivate
}

// Button is one inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

// OutboundMessage is one message to send. TopicID 0 means the chat's main thread.
type OutboundMessage struct {
	ChatID    int64      `json:"chat_id"`
	TopicID   int        `json:"topic_id,omitempty"`
	Text      string     `json:"text"`
	ParseMode string     `json:"parse_mode,omitempty"`
	Buttons   [][]Button `json:"buttons,omitempty"`
}
